package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

type chunkStoreFake struct {
	lexical      []domain.Chunk
	lexicalErr   error
	substring    []domain.Chunk
	substringErr error

	substringCalls int
}

func (f *chunkStoreFake) SearchLexical(_ context.Context, _ string, _ domain.SearchScope) ([]domain.Chunk, error) {
	return f.lexical, f.lexicalErr
}

func (f *chunkStoreFake) SearchSubstring(_ context.Context, _ string, _ domain.SearchScope) ([]domain.Chunk, error) {
	f.substringCalls++
	return f.substring, f.substringErr
}

type vectorStoreFake struct {
	semantic    []domain.Chunk
	semanticErr error
}

func (f *vectorStoreFake) SearchSemantic(_ context.Context, _ []float32, _ domain.SearchScope) ([]domain.Chunk, error) {
	return f.semantic, f.semanticErr
}

func docChunk(id, sourceID string, lex, sem float64) domain.Chunk {
	return domain.Chunk{
		ID:            id,
		SourceType:    domain.SourceDocument,
		SourceID:      sourceID,
		Text:          "chunk " + id,
		ScoreLexical:  lex,
		ScoreSemantic: sem,
	}
}

func TestHybridRetrieverHonorsExplicitZeroWeight(t *testing.T) {
	chunks := &chunkStoreFake{
		lexical: []domain.Chunk{docChunk("c1", "doc-a", 0.8, 0)},
	}
	vectors := &vectorStoreFake{
		semantic: []domain.Chunk{docChunk("c1", "doc-a", 0, 0.9)},
	}
	r := NewHybridRetriever(chunks, vectors, &embedderFake{}, RetrieverConfig{
		SemanticWeight: 1.0,
		LexicalWeight:  0,
	})

	out, err := r.Retrieve(context.Background(), "flexural strength", domain.SearchScope{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(out.Chunks))
	}
	if got := out.Chunks[0].ScoreFinal; got != 0.9 {
		t.Fatalf("semantic-only fusion score = %v, want 0.9", got)
	}
}

func TestHybridRetrieverFusesBothPaths(t *testing.T) {
	chunks := &chunkStoreFake{
		lexical: []domain.Chunk{
			docChunk("c1", "doc-a", 0.8, 0),
			docChunk("c2", "doc-b", 0.5, 0),
		},
	}
	vectors := &vectorStoreFake{
		semantic: []domain.Chunk{
			docChunk("c1", "doc-a", 0, 0.9),
			docChunk("c3", "doc-c", 0, 0.7),
		},
	}
	r := NewHybridRetriever(chunks, vectors, &embedderFake{}, RetrieverConfig{})

	out, err := r.Retrieve(context.Background(), "flexural strength", domain.SearchScope{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Degraded) != 0 {
		t.Fatalf("expected no degradation, got %v", out.Degraded)
	}
	if len(out.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out.Chunks))
	}

	top := out.Chunks[0]
	if top.ID != "c1" {
		t.Fatalf("expected c1 first, got %s", top.ID)
	}
	want := 0.6*0.9 + 0.4*0.8
	if diff := top.ScoreFinal - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("fused score = %f, want %f", top.ScoreFinal, want)
	}
}

func TestHybridRetrieverDegradesOnSinglePathFailure(t *testing.T) {
	chunks := &chunkStoreFake{lexicalErr: errors.New("fts unavailable")}
	vectors := &vectorStoreFake{
		semantic: []domain.Chunk{docChunk("c1", "doc-a", 0, 0.9)},
	}
	r := NewHybridRetriever(chunks, vectors, &embedderFake{}, RetrieverConfig{})

	out, err := r.Retrieve(context.Background(), "viscosity", domain.SearchScope{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Chunks) != 1 || out.Chunks[0].ID != "c1" {
		t.Fatalf("expected semantic survivor, got %+v", out.Chunks)
	}
	if len(out.Degraded) != 1 || !strings.Contains(out.Degraded[0], "lexical") {
		t.Fatalf("expected lexical degradation note, got %v", out.Degraded)
	}
	if chunks.substringCalls != 0 {
		t.Fatalf("substring fallback should not trigger when a path has results")
	}
}

func TestHybridRetrieverSubstringFallback(t *testing.T) {
	fallback := docChunk("c9", "doc-z", 0, 0)
	fallback.ScoreFinal = 0.95
	chunks := &chunkStoreFake{substring: []domain.Chunk{fallback}}
	vectors := &vectorStoreFake{}
	r := NewHybridRetriever(chunks, vectors, &embedderFake{}, RetrieverConfig{})

	out, err := r.Retrieve(context.Background(), "bis-gma", domain.SearchScope{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if chunks.substringCalls != 1 {
		t.Fatalf("expected substring fallback call")
	}
	if len(out.Chunks) != 1 {
		t.Fatalf("expected fallback chunk, got %d", len(out.Chunks))
	}
	if out.Chunks[0].ScoreFinal > 0.3 {
		t.Fatalf("fallback score %f exceeds ceiling", out.Chunks[0].ScoreFinal)
	}
}

func TestHybridRetrieverAllPathsFailed(t *testing.T) {
	chunks := &chunkStoreFake{
		lexicalErr:   errors.New("fts down"),
		substringErr: errors.New("db down"),
	}
	vectors := &vectorStoreFake{semanticErr: errors.New("qdrant down")}
	r := NewHybridRetriever(chunks, vectors, &embedderFake{}, RetrieverConfig{})

	if _, err := r.Retrieve(context.Background(), "tegdma", domain.SearchScope{Limit: 10}); err == nil {
		t.Fatalf("expected error when every path fails")
	}
}

func TestHybridRetrieverDedupesBySource(t *testing.T) {
	chunks := &chunkStoreFake{
		lexical: []domain.Chunk{
			docChunk("c1", "doc-a", 0.9, 0),
			docChunk("c2", "doc-a", 0.4, 0),
			docChunk("c3", "doc-b", 0.5, 0),
		},
	}
	r := NewHybridRetriever(chunks, &vectorStoreFake{}, &embedderFake{}, RetrieverConfig{})

	out, err := r.Retrieve(context.Background(), "cure depth", domain.SearchScope{Limit: 10})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Chunks) != 2 {
		t.Fatalf("expected one chunk per source, got %d", len(out.Chunks))
	}
	if out.Chunks[0].ID != "c1" {
		t.Fatalf("expected best chunk of doc-a kept, got %s", out.Chunks[0].ID)
	}
}

func TestHybridRetrieverTruncatesToLimit(t *testing.T) {
	var lexical []domain.Chunk
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		lexical = append(lexical, docChunk(id, "doc-"+id, 0.5, 0))
	}
	chunks := &chunkStoreFake{lexical: lexical}
	r := NewHybridRetriever(chunks, &vectorStoreFake{}, &embedderFake{}, RetrieverConfig{})

	out, err := r.Retrieve(context.Background(), "hardness", domain.SearchScope{Limit: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Chunks) != 2 {
		t.Fatalf("expected 2 chunks after truncation, got %d", len(out.Chunks))
	}
}
