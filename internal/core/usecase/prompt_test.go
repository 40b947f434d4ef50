package usecase

import (
	"strings"
	"testing"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

func TestBuildAnswerPromptNumbersEvidence(t *testing.T) {
	query := domain.Query{
		Text: "qual a resistência à flexão?",
		History: []domain.ConversationTurn{
			{Role: "user", Content: "vamos falar do lote 12"},
		},
	}
	classification := domain.QueryClassification{Complexity: domain.ComplexityStandard}
	chunks := []domain.Chunk{
		{ID: "c1", SourceType: domain.SourceDocument, SourceID: "doc-a", Title: "Estudo A", Page: 3, Text: "resultado de 131.5 MPa"},
	}
	graph := domain.EvidenceGraph{
		Experiments: []domain.Experiment{{
			ID: "exp-1", Title: "Ensaio de flexão", ProjectID: "p1",
			Variants: []domain.Variant{{
				Name: "10% TEGDMA",
				Measurements: []domain.Measurement{
					{MetricKey: "flexural_strength", Value: 131.5, Unit: "MPa"},
				},
				Conditions: []domain.Condition{{Key: "cure_time", Value: "20s"}},
			}},
		}},
		Insights: []domain.Insight{
			{ID: "ins-1", Text: "resistência melhora com pós-cura", Verified: true},
		},
	}
	critical := []domain.CriticalDocument{{DocumentID: "doc-a", Score: 5, Reason: "verified insight"}}

	bundle := BuildAnswerPrompt(query, classification, chunks, graph, critical)

	if bundle.MaxTokens != 1024 {
		t.Fatalf("standard tier budget = %d, want 1024", bundle.MaxTokens)
	}
	if len(bundle.Citations) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(bundle.Citations))
	}
	for i, c := range bundle.Citations {
		if c.Number != i+1 {
			t.Fatalf("citation numbering broken: %+v", bundle.Citations)
		}
	}
	for _, want := range []string{
		"[1] Estudo A (document, p.3)",
		"[2] Experiment: Ensaio de flexão",
		"131.5 MPa",
		"condition cure_time = 20s",
		"[3] Insight (verified)",
		"Most load-bearing documents:",
		"Question: qual a resistência à flexão?",
		"vamos falar do lote 12",
	} {
		if !strings.Contains(bundle.User, want) {
			t.Fatalf("prompt missing %q:\n%s", want, bundle.User)
		}
	}
}

func TestBuildAnswerPromptCapsChunks(t *testing.T) {
	var chunks []domain.Chunk
	for i := 0; i < 12; i++ {
		chunks = append(chunks, domain.Chunk{
			ID:         string(rune('a' + i)),
			SourceType: domain.SourceDocument,
			SourceID:   "doc-" + string(rune('a'+i)),
			Text:       "text",
		})
	}

	bundle := BuildAnswerPrompt(domain.Query{Text: "q"}, domain.QueryClassification{}, chunks, domain.EvidenceGraph{}, nil)
	if bundle.ChunksUsed != maxPromptChunks {
		t.Fatalf("chunks used = %d, want %d", bundle.ChunksUsed, maxPromptChunks)
	}
	if len(bundle.Citations) != maxPromptChunks {
		t.Fatalf("citations = %d, want %d", len(bundle.Citations), maxPromptChunks)
	}
}

func TestBuildRegenerationPromptListsAllowedValues(t *testing.T) {
	graph := graphWithValues(131.5, 2500)
	bundle := PromptBundle{User: "base prompt"}

	out := BuildRegenerationPrompt(bundle, []string{"55.3"}, graph)
	for _, want := range []string{"base prompt", "55.3", "- 131.5", "- 2500"} {
		if !strings.Contains(out, want) {
			t.Fatalf("regeneration prompt missing %q:\n%s", want, out)
		}
	}
}
