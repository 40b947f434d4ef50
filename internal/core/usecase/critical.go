package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

const (
	scoreVerifiedInsight   = 3
	scoreUnverifiedInsight = 1
	scorePerMeasurement    = 2
	measurementScoreCap    = 4
	maxCriticalDocuments   = 3
)

// SelectCriticalDocuments ranks the documents that most justify an
// answer. The score is additive per document: verified insights weigh
// most, unverified insights least, and experiments contribute per valid
// measurement up to a cap so a single dense table cannot dominate.
func SelectCriticalDocuments(graph domain.EvidenceGraph) []domain.CriticalDocument {
	type docScore struct {
		score   int
		reasons []string
	}
	scores := make(map[string]*docScore)

	bump := func(docID string, delta int, reason string) {
		if docID == "" {
			return
		}
		entry, ok := scores[docID]
		if !ok {
			entry = &docScore{}
			scores[docID] = entry
		}
		entry.score += delta
		entry.reasons = append(entry.reasons, reason)
	}

	for _, ins := range graph.Insights {
		if ins.Verified {
			bump(ins.DocumentID, scoreVerifiedInsight, "verified insight")
		} else {
			bump(ins.DocumentID, scoreUnverifiedInsight, "unverified insight")
		}
	}

	for _, exp := range graph.Experiments {
		measurements := exp.MeasurementTotal()
		if measurements == 0 {
			continue
		}
		counted := measurements
		if counted > measurementScoreCap {
			counted = measurementScoreCap
		}
		bump(exp.DocumentID, counted*scorePerMeasurement,
			fmt.Sprintf("experiment with %d measurement(s)", measurements))
	}

	out := make([]domain.CriticalDocument, 0, len(scores))
	for docID, entry := range scores {
		out = append(out, domain.CriticalDocument{
			DocumentID: docID,
			Score:      float64(entry.score),
			Reason:     strings.Join(entry.reasons, "; "),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > maxCriticalDocuments {
		out = out[:maxCriticalDocuments]
	}
	return out
}
