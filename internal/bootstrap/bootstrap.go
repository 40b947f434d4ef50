package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/osadchiy/evidence-engine/internal/config"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
	"github.com/osadchiy/evidence-engine/internal/core/usecase"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/catalog"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/llm/textgen"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/queue/nats"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/repository/postgres"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/resilience"
	"github.com/osadchiy/evidence-engine/internal/infrastructure/vector/qdrant"
	"github.com/osadchiy/evidence-engine/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Answers ports.AnswerService
	Metrics *metrics.ServerMetrics
	Queue   *nats.Queue
	Catalog *catalog.Provider

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	chunks := postgres.NewChunkRepository(db, cfg.FTSLanguage)
	if err := chunks.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}
	evidence := postgres.NewEvidenceRepository(db)
	if err := evidence.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure evidence schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	client := textgen.New(cfg.GenerationURL, cfg.GenerationModel, cfg.EmbeddingModel, cfg.GenerationAPIKey)
	limiter := rate.NewLimiter(rate.Limit(cfg.GenerationRPS), cfg.GenerationBurst)
	generator := textgen.NewGenerator(client, limiter, executor)

	embedClient := client
	if cfg.EmbeddingURL != "" && cfg.EmbeddingURL != cfg.GenerationURL {
		embedClient = textgen.New(cfg.EmbeddingURL, cfg.GenerationModel, cfg.EmbeddingModel, cfg.GenerationAPIKey)
	}
	embedder := textgen.NewEmbedder(embedClient, executor)

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	var provider *catalog.Provider
	if cfg.CatalogPath != "" {
		provider = catalog.NewFileProvider(cfg.CatalogPath)
	} else {
		provider = catalog.NewStoreProvider(evidence)
	}

	resolver := usecase.NewAliasResolver(provider, embedder, usecase.NewResolutionCacheMap(), usecase.AliasConfig{
		TrigramThreshold:   cfg.TrigramThreshold,
		EmbeddingThreshold: cfg.EmbeddingThreshold,
		AmbiguityDelta:     cfg.AmbiguityDelta,
	})
	classifier := usecase.NewIntentClassifier(usecase.NewTermNormalizer(), resolver)

	retriever := usecase.NewHybridRetriever(chunks, vectors, embedder, usecase.RetrieverConfig{
		SemanticWeight:     cfg.SemanticWeight,
		LexicalWeight:      cfg.LexicalWeight,
		CandidateLimit:     cfg.RetrievalCandidates,
		SubstringScoreCeil: cfg.SubstringScoreCeil,
	})
	graphs := usecase.NewGraphBuilder(evidence)
	verifier := usecase.NewNumericVerifier(usecase.VerifierConfig{
		Tolerance:     cfg.GroundingTolerance,
		MaxUngrounded: cfg.MaxUngrounded,
	})

	serverMetrics := metrics.NewServerMetrics("evidence-engine")
	pipelineMetrics := metrics.NewPipelineMetrics("evidence-engine", serverMetrics)

	answers := usecase.NewAnswerUseCase(
		classifier,
		retriever,
		graphs,
		verifier,
		generator,
		pipelineMetrics,
		logger,
		cfg.AnswerChunkLimit,
	)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSCatalogSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &App{
		Config:  cfg,
		Answers: answers,
		Metrics: serverMetrics,
		Queue:   queue,
		Catalog: provider,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// WatchCatalogUpdates blocks until ctx is done, refreshing the metric
// catalog whenever an update event arrives.
func (a *App) WatchCatalogUpdates(ctx context.Context) error {
	return a.Queue.SubscribeCatalogUpdated(ctx, func(handlerCtx context.Context) error {
		_, err := a.Catalog.Refresh(handlerCtx)
		return err
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
