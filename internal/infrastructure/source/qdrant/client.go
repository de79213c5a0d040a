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

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
	"github.com/olshev/transcript-insight/internal/infrastructure/resilience"
)

// Embedder turns the question into a query vector. The OpenAI client
// implements it; tests plug in a fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client queries a Qdrant collection of transcript-chunk vectors. It is the
// semantic leg of the fusion engine.
type Client struct {
	cfg        Config
	embedder   Embedder
	guard      *resilience.Guard
	httpClient *http.Client
}

func New(cfg Config, embedder Embedder, guard *resilience.Guard) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		embedder:   embedder,
		guard:      guard,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceSemantic
}

func (c *Client) Query(ctx context.Context, q ports.SourceQuery) ports.SourceReply {
	if strings.TrimSpace(c.cfg.BaseURL) == "" || c.embedder == nil {
		return ports.SourceReply{
			Status:  domain.SourceStatusSkipped,
			Message: "semantic source not configured",
		}
	}

	vector, err := c.embedder.Embed(ctx, q.Query)
	if err != nil {
		return ports.SourceReply{
			Status:  domain.SourceStatusError,
			Message: fmt.Sprintf("embed query: %v", err),
		}
	}

	var results []domain.SearchResult
	call := func(ctx context.Context) error {
		var callErr error
		results, callErr = c.search(ctx, vector, q)
		return callErr
	}

	if c.guard != nil {
		err = c.guard.Do(ctx, "qdrant", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return ports.SourceReply{
			Status:  domain.SourceStatusError,
			Message: err.Error(),
		}
	}

	return ports.SourceReply{
		Results: results,
		Status:  domain.SourceStatusSuccess,
	}
}

func (c *Client) search(ctx context.Context, vector []float32, q ports.SourceQuery) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        q.TopK,
		"with_payload": true,
	}
	if clause := filterClause(q.Filters); clause != nil {
		reqBody["filter"] = clause
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &resilience.StatusError{
			Status:  resp.StatusCode,
			Backend: "qdrant",
			Detail:  strings.TrimSpace(string(detail)),
		}
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

	out := make([]domain.SearchResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SearchResult{
			ChunkID:     payloadString(r.Payload, "chunk_id"),
			VideoID:     payloadString(r.Payload, "video_id"),
			Title:       payloadString(r.Payload, "title"),
			Text:        payloadString(r.Payload, "text"),
			TokenCount:  payloadInt(r.Payload, "token_count"),
			ContentHash: payloadString(r.Payload, "content_hash"),
			RawScore:    r.Score,
			Source:      domain.SourceSemantic,
		})
	}
	return out, nil
}

// filterClause maps the engine's metadata filter onto Qdrant's must clauses.
// Published-at bounds assume the payload field is indexed as a datetime.
func filterClause(f domain.SearchFilter) map[string]any {
	if f.Empty() {
		return nil
	}

	must := make([]map[string]any, 0, 4)
	if f.ChannelID != "" {
		must = append(must, map[string]any{
			"key":   "channel_id",
			"match": map[string]any{"value": f.ChannelID},
		})
	}
	if f.VideoID != "" {
		must = append(must, map[string]any{
			"key":   "video_id",
			"match": map[string]any{"value": f.VideoID},
		})
	}
	if f.PublishedAfter != nil || f.PublishedBefore != nil {
		published := map[string]any{}
		if f.PublishedAfter != nil {
			published["gte"] = f.PublishedAfter.UTC().Format(time.RFC3339)
		}
		if f.PublishedBefore != nil {
			published["lte"] = f.PublishedBefore.UTC().Format(time.RFC3339)
		}
		must = append(must, map[string]any{"key": "published_at", "range": published})
	}
	if f.MinDurationSec > 0 || f.MaxDurationSec > 0 {
		duration := map[string]any{}
		if f.MinDurationSec > 0 {
			duration["gte"] = f.MinDurationSec
		}
		if f.MaxDurationSec > 0 {
			duration["lte"] = f.MaxDurationSec
		}
		must = append(must, map[string]any{"key": "duration_sec", "range": duration})
	}

	return map[string]any{"must": must}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
