package domain

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is immutable once received; the pipeline never mutates it.
type Query struct {
	Text                 string             `json:"text"`
	AuthorizedProjectIDs []string           `json:"authorized_project_ids"`
	ProjectScope         []string           `json:"project_scope,omitempty"`
	History              []ConversationTurn `json:"history,omitempty"`
}

type IntentFlags struct {
	TabularLookup bool `json:"tabular_lookup"`
	Comparative   bool `json:"comparative"`
	Interpretive  bool `json:"interpretive_deep_reasoning"`
}

type ComplexityTier string

const (
	ComplexitySimple   ComplexityTier = "simple"
	ComplexityStandard ComplexityTier = "standard"
	ComplexityDeep     ComplexityTier = "deep"
)

type QueryClassification struct {
	Intent        IntentFlags    `json:"intent"`
	Complexity    ComplexityTier `json:"complexity"`
	TargetMetrics []string       `json:"target_metrics"`
}

type AnswerResult struct {
	ResponseText string     `json:"response_text"`
	Citations    []Citation `json:"citations"`
	ChunksUsed   int        `json:"chunks_used"`
	Verified     bool       `json:"verified"`
	LatencyMs    int64      `json:"latency_ms"`
	Diagnostics  []string   `json:"diagnostics,omitempty"`
}
