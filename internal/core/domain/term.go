package domain

type NormalizationRule string

const (
	RuleNone              NormalizationRule = "none"
	RuleRangeDetectedSkip NormalizationRule = "range_detected_skip"
	RuleMicronToNm        NormalizationRule = "micron_to_nm"
	RulePasToMpas         NormalizationRule = "pas_to_mpas"
)

type Term struct {
	Original    string            `json:"original"`
	Normalized  string            `json:"normalized"`
	RuleApplied NormalizationRule `json:"rule_applied"`
}

type MatchMethod string

const (
	MatchExact     MatchMethod = "exact"
	MatchTrigram   MatchMethod = "trigram"
	MatchEmbedding MatchMethod = "embedding"
)

type AliasCandidate struct {
	CanonicalKey string      `json:"canonical_key"`
	Alias        string      `json:"alias"`
	Score        float64     `json:"score"`
	Method       MatchMethod `json:"method"`
	Accepted     bool        `json:"accepted"`
}

type ResolutionStatus string

const (
	ResolutionAccepted   ResolutionStatus = "accepted"
	ResolutionAmbiguous  ResolutionStatus = "ambiguous"
	ResolutionUnresolved ResolutionStatus = "unresolved"
)

// Resolution keeps the original term when unresolved so downstream
// components pass it through instead of fabricating a key.
type Resolution struct {
	Term         Term             `json:"term"`
	CanonicalKey string           `json:"canonical_key,omitempty"`
	Status       ResolutionStatus `json:"status"`
	Candidates   []AliasCandidate `json:"candidates,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

func (r Resolution) EffectiveKey() string {
	if r.Status == ResolutionAccepted {
		return r.CanonicalKey
	}
	return r.Term.Normalized
}
