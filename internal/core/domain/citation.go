package domain

type Citation struct {
	Number     int        `json:"citation"`
	SourceType SourceType `json:"type"`
	SourceID   string     `json:"id"`
	Title      string     `json:"title,omitempty"`
	ProjectID  string     `json:"project,omitempty"`
	Excerpt    string     `json:"excerpt,omitempty"`
}

type CriticalDocument struct {
	DocumentID string  `json:"doc_id"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
}

type VerificationResult struct {
	Verified         bool     `json:"verified"`
	Issues           []string `json:"issues,omitempty"`
	UngroundedTokens []string `json:"-"`
}
