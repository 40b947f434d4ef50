package textgen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/osadchiy/evidence-engine/internal/infrastructure/resilience"
)

// Client talks to the external completion/embedding service. The
// service is a black box: occasionally rate limited (429) or out of
// quota (402), and both surface as distinct error kinds.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generator implements the text generation port with client-side
// pacing and a retry/breaker executor around each call.
type Generator struct {
	client   *Client
	limiter  *rate.Limiter
	executor *resilience.Executor
}

func NewGenerator(client *Client, limiter *rate.Limiter, executor *resilience.Executor) *Generator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Generator{client: client, limiter: limiter, executor: executor}
}

func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generation pacing: %w", err)
	}

	reqBody := map[string]any{
		"model":  g.client.genModel,
		"system": systemPrompt,
		"prompt": userPrompt,
		"stream": false,
	}
	if maxTokens > 0 {
		reqBody["options"] = map[string]any{"num_predict": maxTokens}
	}

	var response struct {
		Response string `json:"response"`
	}
	err := g.executor.Execute(ctx, "generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}, classifyGenerationError)
	if err != nil {
		return "", wrapGenerationError("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

// Embedder implements the embedding port over the same transport.
type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client, executor *resilience.Executor) *Embedder {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Embedder{client: client, executor: executor}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.executor.Execute(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyGenerationError)
	if err != nil {
		return nil, wrapGenerationError("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
