package domain

import (
	"strconv"
	"strings"
	"time"
)

type Condition struct {
	VariantID string `json:"variant_id,omitempty"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

type Measurement struct {
	VariantID      string  `json:"variant_id,omitempty"`
	MetricKey      string  `json:"metric_key"`
	RawName        string  `json:"raw_name"`
	Value          float64 `json:"value"`
	Unit           string  `json:"unit"`
	CanonicalValue float64 `json:"canonical_value"`
	CanonicalUnit  string  `json:"canonical_unit"`
	Confidence     float64 `json:"confidence"`
	SourceExcerpt  string  `json:"source_excerpt"`
}

// HasVerifiableExcerpt reports whether the source excerpt literally
// contains the measured value, in dot or comma decimal form.
func (m Measurement) HasVerifiableExcerpt() bool {
	if strings.TrimSpace(m.SourceExcerpt) == "" {
		return false
	}
	for _, form := range DecimalForms(m.Value) {
		if strings.Contains(m.SourceExcerpt, form) {
			return true
		}
	}
	return false
}

// DecimalForms renders v in both decimal conventions, trimming
// trailing zeros so "131.50" matches an excerpt quoting "131.5".
func DecimalForms(v float64) []string {
	dot := strconv.FormatFloat(v, 'f', -1, 64)
	comma := strings.ReplaceAll(dot, ".", ",")
	if dot == comma {
		return []string{dot}
	}
	return []string{dot, comma}
}

type Variant struct {
	ID           string        `json:"id"`
	ExperimentID string        `json:"experiment_id"`
	Name         string        `json:"name"`
	Conditions   []Condition   `json:"conditions,omitempty"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

type Experiment struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	DocumentID   string    `json:"document_id"`
	Title        string    `json:"title"`
	Objective    string    `json:"objective,omitempty"`
	EvidenceDate time.Time `json:"evidence_date"`
	Variants     []Variant `json:"variants,omitempty"`
}

func (e Experiment) MeasurementTotal() int {
	n := 0
	for _, v := range e.Variants {
		n += len(v.Measurements)
	}
	return n
}

type Insight struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	DocumentID string `json:"document_id"`
	MetricKey  string `json:"metric_key"`
	Text       string `json:"text"`
	Verified   bool   `json:"verified"`
}

// EvidenceGraph is built fresh per query and never persisted.
type EvidenceGraph struct {
	Experiments []Experiment `json:"experiments"`
	Insights    []Insight    `json:"insights"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

func (g EvidenceGraph) Empty() bool {
	return len(g.Experiments) == 0 && len(g.Insights) == 0
}

func (g EvidenceGraph) MeasurementCount() int {
	n := 0
	for _, exp := range g.Experiments {
		for _, v := range exp.Variants {
			n += len(v.Measurements)
		}
	}
	return n
}
