package domain

type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceInsight  SourceType = "insight"
	SourceReport   SourceType = "report"
)

// Chunk is produced and owned by the external indexing pipeline; the
// engine only reads chunks. ProjectID is empty for global chunks.
type Chunk struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id,omitempty"`
	SourceType    SourceType `json:"source_type"`
	SourceID      string     `json:"source_id"`
	Title         string     `json:"title,omitempty"`
	Page          int        `json:"page,omitempty"`
	Text          string     `json:"text"`
	ScoreLexical  float64    `json:"score_lexical"`
	ScoreSemantic float64    `json:"score_semantic"`
	ScoreFinal    float64    `json:"score_final"`
}

type SearchScope struct {
	ProjectIDs []string
	Limit      int
}
