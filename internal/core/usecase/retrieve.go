package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

type RetrieverConfig struct {
	SemanticWeight     float64
	LexicalWeight      float64
	CandidateLimit     int
	SubstringScoreCeil float64
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	out := c
	// Weights default as a pair so a single-path setup (one weight
	// explicitly zero, the other set) is honored, not floored back.
	if out.SemanticWeight <= 0 && out.LexicalWeight <= 0 {
		out.SemanticWeight = 0.6
		out.LexicalWeight = 0.4
	}
	if out.SemanticWeight < 0 {
		out.SemanticWeight = 0
	}
	if out.LexicalWeight < 0 {
		out.LexicalWeight = 0
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = 30
	}
	if out.SubstringScoreCeil <= 0 {
		out.SubstringScoreCeil = 0.3
	}
	return out
}

// RetrievalOutcome carries the fused result set plus degradation notes
// when one path failed and the pipeline continued on the survivor.
type RetrievalOutcome struct {
	Chunks   []domain.Chunk
	Degraded []string
}

type HybridRetriever struct {
	chunks   ports.ChunkStore
	vectors  ports.VectorStore
	embedder ports.Embedder
	cfg      RetrieverConfig
}

func NewHybridRetriever(
	chunks ports.ChunkStore,
	vectors ports.VectorStore,
	embedder ports.Embedder,
	cfg RetrieverConfig,
) *HybridRetriever {
	return &HybridRetriever{
		chunks:   chunks,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg.normalize(),
	}
}

// Retrieve runs the lexical and semantic paths concurrently, fuses
// scores, deduplicates by source, and truncates to the limit. A single
// failing path degrades instead of erroring; both failing falls back to
// substring matching with a confidence ceiling.
func (r *HybridRetriever) Retrieve(ctx context.Context, queryText string, scope domain.SearchScope) (RetrievalOutcome, error) {
	candidateScope := scope
	candidateScope.Limit = r.cfg.CandidateLimit

	type pathResult struct {
		chunks []domain.Chunk
		err    error
	}

	lexicalCh := make(chan pathResult, 1)
	semanticCh := make(chan pathResult, 1)

	go func() {
		chunks, err := r.chunks.SearchLexical(ctx, queryText, candidateScope)
		lexicalCh <- pathResult{chunks: chunks, err: err}
	}()
	go func() {
		vector, err := r.embedder.EmbedQuery(ctx, queryText)
		if err != nil {
			semanticCh <- pathResult{err: fmt.Errorf("embed query: %w", err)}
			return
		}
		chunks, err := r.vectors.SearchSemantic(ctx, vector, candidateScope)
		semanticCh <- pathResult{chunks: chunks, err: err}
	}()

	lexical := <-lexicalCh
	semantic := <-semanticCh

	outcome := RetrievalOutcome{}
	if lexical.err != nil {
		outcome.Degraded = append(outcome.Degraded, fmt.Sprintf("lexical path failed: %v", lexical.err))
		slog.Warn("retrieval_path_degraded", "path", "lexical", "error", lexical.err)
	}
	if semantic.err != nil {
		outcome.Degraded = append(outcome.Degraded, fmt.Sprintf("semantic path failed: %v", semantic.err))
		slog.Warn("retrieval_path_degraded", "path", "semantic", "error", semantic.err)
	}

	fused := r.fuse(lexical.chunks, semantic.chunks)

	if len(fused) == 0 {
		fallback, err := r.chunks.SearchSubstring(ctx, queryText, candidateScope)
		if err != nil {
			if lexical.err != nil && semantic.err != nil {
				return outcome, fmt.Errorf("all retrieval paths failed: %w", err)
			}
			slog.Warn("retrieval_path_degraded", "path", "substring", "error", err)
		}
		for i := range fallback {
			if fallback[i].ScoreFinal > r.cfg.SubstringScoreCeil {
				fallback[i].ScoreFinal = r.cfg.SubstringScoreCeil
			}
		}
		if len(fallback) > 0 {
			outcome.Degraded = append(outcome.Degraded, "structured search empty, substring fallback used")
		}
		fused = fallback
	}

	fused = dedupeBySource(fused)
	sortChunks(fused)
	outcome.Chunks = trimChunks(fused, scope.Limit)
	return outcome, nil
}

// fuse merges the two candidate lists by chunk id, combining the
// lexical and semantic scores into score_final.
func (r *HybridRetriever) fuse(lexical, semantic []domain.Chunk) []domain.Chunk {
	acc := make(map[string]domain.Chunk, len(lexical)+len(semantic))

	merge := func(incoming domain.Chunk) {
		current, ok := acc[incoming.ID]
		if !ok {
			acc[incoming.ID] = incoming
			return
		}
		if incoming.ScoreLexical > current.ScoreLexical {
			current.ScoreLexical = incoming.ScoreLexical
		}
		if incoming.ScoreSemantic > current.ScoreSemantic {
			current.ScoreSemantic = incoming.ScoreSemantic
		}
		current = preferRicherChunk(current, incoming)
		acc[incoming.ID] = current
	}

	for _, c := range lexical {
		merge(c)
	}
	for _, c := range semantic {
		merge(c)
	}

	out := make([]domain.Chunk, 0, len(acc))
	for _, c := range acc {
		c.ScoreFinal = r.cfg.SemanticWeight*c.ScoreSemantic + r.cfg.LexicalWeight*c.ScoreLexical
		out = append(out, c)
	}
	return out
}

// dedupeBySource keeps only the best chunk per (source_type, source_id)
// so one document cannot crowd the result list.
func dedupeBySource(chunks []domain.Chunk) []domain.Chunk {
	best := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		key := fmt.Sprintf("%s|%s", c.SourceType, c.SourceID)
		current, ok := best[key]
		if !ok || c.ScoreFinal > current.ScoreFinal {
			best[key] = c
		}
	}
	out := make([]domain.Chunk, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

func sortChunks(chunks []domain.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].ScoreFinal != chunks[j].ScoreFinal {
			return chunks[i].ScoreFinal > chunks[j].ScoreFinal
		}
		if chunks[i].SourceID != chunks[j].SourceID {
			return chunks[i].SourceID < chunks[j].SourceID
		}
		return chunks[i].ID < chunks[j].ID
	})
}

func trimChunks(chunks []domain.Chunk, limit int) []domain.Chunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func preferRicherChunk(current, candidate domain.Chunk) domain.Chunk {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.ProjectID == "" && candidate.ProjectID != "" {
		current.ProjectID = candidate.ProjectID
	}
	if current.Page == 0 && candidate.Page != 0 {
		current.Page = candidate.Page
	}
	return current
}
