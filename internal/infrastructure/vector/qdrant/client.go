package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// Client searches the chunk embedding collection over qdrant's REST
// API. The collection is written by the external indexing pipeline;
// this client only reads.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SearchSemantic returns the nearest chunks, restricted to the
// authorized projects plus global (project-less) chunks.
func (c *Client) SearchSemantic(ctx context.Context, queryVector []float32, scope domain.SearchScope) ([]domain.Chunk, error) {
	limit := scope.Limit
	if limit <= 0 {
		limit = 30
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"filter":       scopeFilter(scope.ProjectIDs),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Chunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Chunk{
			ID:            getStringPayload(r.Payload, "chunk_id"),
			ProjectID:     getStringPayload(r.Payload, "project_id"),
			SourceType:    domain.SourceType(getStringPayload(r.Payload, "source_type")),
			SourceID:      getStringPayload(r.Payload, "source_id"),
			Title:         getStringPayload(r.Payload, "title"),
			Page:          getIntPayload(r.Payload, "page"),
			Text:          getStringPayload(r.Payload, "text"),
			ScoreSemantic: r.Score,
		})
	}
	return out, nil
}

// scopeFilter admits global chunks (no project_id payload) alongside
// the authorized project set.
func scopeFilter(projectIDs []string) map[string]any {
	global := map[string]any{
		"is_empty": map[string]any{"key": "project_id"},
	}
	if len(projectIDs) == 0 {
		return map[string]any{"must": []map[string]any{global}}
	}
	return map[string]any{
		"should": []map[string]any{
			global,
			{
				"key":   "project_id",
				"match": map[string]any{"any": projectIDs},
			},
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}
