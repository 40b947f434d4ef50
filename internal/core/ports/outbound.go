package ports

import (
	"context"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// ChunkStore reads indexed chunks owned by the external indexing pipeline.
type ChunkStore interface {
	SearchLexical(ctx context.Context, query string, scope domain.SearchScope) ([]domain.Chunk, error)
	SearchSubstring(ctx context.Context, query string, scope domain.SearchScope) ([]domain.Chunk, error)
}

// VectorStore performs semantic nearest-neighbor search over chunk embeddings.
type VectorStore interface {
	SearchSemantic(ctx context.Context, queryVector []float32, scope domain.SearchScope) ([]domain.Chunk, error)
}

// Embedder builds vectors for query text and catalog aliases.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EvidenceStore queries structured experimental records one level at a
// time, keyed by parent ids.
type EvidenceStore interface {
	ExperimentsByMetricKeys(ctx context.Context, projectIDs, metricKeys []string) ([]domain.Experiment, error)
	VariantsByExperimentIDs(ctx context.Context, experimentIDs []string) ([]domain.Variant, error)
	MeasurementsByVariantIDs(ctx context.Context, variantIDs []string) ([]domain.Measurement, error)
	ConditionsByVariantIDs(ctx context.Context, variantIDs []string) ([]domain.Condition, error)
	InsightsByMetricKeys(ctx context.Context, projectIDs, metricKeys []string) ([]domain.Insight, error)
	MetricCatalog(ctx context.Context) ([]domain.CatalogEntry, error)
}

// TextGenerator is the opaque external text-completion service.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// ResolutionCache survives across queries within a process; entries are
// keyed by normalized-term text so stale catalog updates naturally miss.
type ResolutionCache interface {
	Get(normalizedTerm string) (domain.Resolution, bool)
	Put(normalizedTerm string, resolution domain.Resolution)
}

// CatalogProvider hands out the current metric catalog snapshot.
type CatalogProvider interface {
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
}
