package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

// PipelineMetrics receives pipeline outcomes; the prometheus adapter
// implements it, tests use a no-op.
type PipelineMetrics interface {
	AnswerCompleted(tier domain.ComplexityTier, verified bool, duration time.Duration)
	AnswerFailed(stage string)
	RetrievalDegraded(path string)
	GroundingRetried()
}

type NopMetrics struct{}

func (NopMetrics) AnswerCompleted(domain.ComplexityTier, bool, time.Duration) {}
func (NopMetrics) AnswerFailed(string)                                        {}
func (NopMetrics) RetrievalDegraded(string)                                   {}
func (NopMetrics) GroundingRetried()                                          {}

// AnswerUseCase wires the full pipeline: classify, resolve, retrieve,
// build evidence, select documents, generate, verify, assemble.
type AnswerUseCase struct {
	classifier *IntentClassifier
	retriever  *HybridRetriever
	evidence   *GraphBuilder
	verifier   *NumericVerifier
	generator  ports.TextGenerator
	metrics    PipelineMetrics
	logger     *slog.Logger
	chunkLimit int
}

func NewAnswerUseCase(
	classifier *IntentClassifier,
	retriever *HybridRetriever,
	evidence *GraphBuilder,
	verifier *NumericVerifier,
	generator ports.TextGenerator,
	metrics PipelineMetrics,
	logger *slog.Logger,
	chunkLimit int,
) *AnswerUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if chunkLimit <= 0 {
		chunkLimit = 10
	}
	return &AnswerUseCase{
		classifier: classifier,
		retriever:  retriever,
		evidence:   evidence,
		verifier:   verifier,
		generator:  generator,
		metrics:    metrics,
		logger:     logger,
		chunkLimit: chunkLimit,
	}
}

var _ ports.AnswerService = (*AnswerUseCase)(nil)

func (uc *AnswerUseCase) Answer(ctx context.Context, query domain.Query) (*domain.AnswerResult, error) {
	startedAt := time.Now()

	scope, err := authorizedScope(query)
	if err != nil {
		uc.metrics.AnswerFailed("authorize")
		return nil, err
	}
	if strings.TrimSpace(query.Text) == "" {
		uc.metrics.AnswerFailed("validate")
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("empty query text"))
	}

	classification, err := uc.classifier.Classify(ctx, query)
	if err != nil {
		uc.metrics.AnswerFailed("classify")
		return nil, fmt.Errorf("classify query: %w", err)
	}
	uc.logger.Info("query_classified",
		"tier", classification.Complexity,
		"target_metrics", classification.TargetMetrics,
		"tabular", classification.Intent.TabularLookup,
		"comparative", classification.Intent.Comparative,
		"interpretive", classification.Intent.Interpretive,
	)

	retrieval, err := uc.retriever.Retrieve(ctx, query.Text, domain.SearchScope{
		ProjectIDs: scope,
		Limit:      uc.chunkLimit,
	})
	if err != nil {
		uc.metrics.AnswerFailed("retrieve")
		return nil, domain.WrapError(domain.ErrTemporary, "retrieve", err)
	}
	for _, note := range retrieval.Degraded {
		uc.metrics.RetrievalDegraded(degradedPath(note))
	}
	diagnostics := retrieval.Degraded

	graph := domain.EvidenceGraph{}
	if classification.Complexity != domain.ComplexitySimple || len(classification.TargetMetrics) > 0 {
		graph, err = uc.evidence.Build(ctx, scope, classification.TargetMetrics)
		if err != nil {
			uc.metrics.AnswerFailed("evidence")
			return nil, domain.WrapError(domain.ErrTemporary, "build evidence", err)
		}
		diagnostics = append(diagnostics, graph.Diagnostics...)
	}

	// Metric queries answer from structured evidence only; retrieved
	// chunks alone leave the verifier with an empty valid set.
	if len(classification.TargetMetrics) > 0 && graph.Empty() {
		uc.metrics.AnswerFailed("insufficient_evidence")
		return nil, domain.WrapError(domain.ErrInsufficientEvidence, "answer",
			fmt.Errorf("no evidence for metrics %v", classification.TargetMetrics))
	}

	critical := SelectCriticalDocuments(graph)
	bundle := BuildAnswerPrompt(query, classification, retrieval.Chunks, graph, critical)

	draft, err := uc.generator.Generate(ctx, bundle.System, bundle.User, bundle.MaxTokens)
	if err != nil {
		uc.metrics.AnswerFailed("generate")
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	verification := uc.verifier.Verify(draft, graph)
	if !verification.Verified {
		uc.metrics.GroundingRetried()
		uc.logger.Warn("grounding_failed", "issues", verification.Issues)

		retryPrompt := BuildRegenerationPrompt(bundle, verification.UngroundedTokens, graph)
		retry, retryErr := uc.generator.Generate(ctx, bundle.System, retryPrompt, bundle.MaxTokens)
		if retryErr == nil {
			if retryVerification := uc.verifier.Verify(retry, graph); retryVerification.Verified {
				draft = retry
				verification = retryVerification
			} else {
				draft = RedactUngrounded(retry, retryVerification.UngroundedTokens)
				verification = retryVerification
			}
		} else {
			uc.logger.Warn("grounding_retry_failed", "error", retryErr)
			draft = RedactUngrounded(draft, verification.UngroundedTokens)
		}
	}

	result := AssembleAnswer(draft, bundle, verification, diagnostics, startedAt)
	uc.metrics.AnswerCompleted(classification.Complexity, result.Verified, time.Since(startedAt))
	uc.logger.Info("answer_completed",
		"verified", result.Verified,
		"chunks_used", result.ChunksUsed,
		"citations", len(result.Citations),
		"latency_ms", result.LatencyMs,
	)
	return &result, nil
}

func degradedPath(note string) string {
	for _, path := range []string{"lexical", "semantic", "substring"} {
		if strings.Contains(note, path) {
			return path
		}
	}
	return "unknown"
}

// authorizedScope validates the requested project scope against the
// caller's authorized set and returns the effective scope.
func authorizedScope(query domain.Query) ([]string, error) {
	if len(query.ProjectScope) == 0 {
		return query.AuthorizedProjectIDs, nil
	}
	authorized := make(map[string]struct{}, len(query.AuthorizedProjectIDs))
	for _, id := range query.AuthorizedProjectIDs {
		authorized[id] = struct{}{}
	}
	for _, id := range query.ProjectScope {
		if _, ok := authorized[id]; !ok {
			return nil, domain.WrapError(domain.ErrUnauthorized, "answer",
				fmt.Errorf("project %s outside authorized set", id))
		}
	}
	return query.ProjectScope, nil
}
