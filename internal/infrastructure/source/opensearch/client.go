package opensearch

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

type Config struct {
	BaseURL  string
	Index    string
	Username string
	Password string
	Timeout  time.Duration
}

// Client runs BM25 full-text queries against an OpenSearch index of
// transcript chunks. It is the keyword leg of the fusion engine.
type Client struct {
	cfg        Config
	guard      *resilience.Guard
	httpClient *http.Client
}

func New(cfg Config, guard *resilience.Guard) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		guard:      guard,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceKeyword
}

func (c *Client) Query(ctx context.Context, q ports.SourceQuery) ports.SourceReply {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return ports.SourceReply{
			Status:  domain.SourceStatusSkipped,
			Message: "keyword source not configured",
		}
	}

	var results []domain.SearchResult
	call := func(ctx context.Context) error {
		var callErr error
		results, callErr = c.search(ctx, q)
		return callErr
	}

	var err error
	if c.guard != nil {
		err = c.guard.Do(ctx, "opensearch", call)
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

func (c *Client) search(ctx context.Context, q ports.SourceQuery) ([]domain.SearchResult, error) {
	reqBody := map[string]any{
		"size":    q.TopK,
		"_source": []string{"chunk_id", "video_id", "title", "text", "token_count", "content_hash"},
		"query":   boolQuery(q),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensearch search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &resilience.StatusError{
			Status:  resp.StatusCode,
			Backend: "opensearch",
			Detail:  strings.TrimSpace(string(detail)),
		}
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					ChunkID     string `json:"chunk_id"`
					VideoID     string `json:"video_id"`
					Title       string `json:"title"`
					Text        string `json:"text"`
					TokenCount  int    `json:"token_count"`
					ContentHash string `json:"content_hash"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		out = append(out, domain.SearchResult{
			ChunkID:     hit.Source.ChunkID,
			VideoID:     hit.Source.VideoID,
			Title:       hit.Source.Title,
			Text:        hit.Source.Text,
			TokenCount:  hit.Source.TokenCount,
			ContentHash: hit.Source.ContentHash,
			RawScore:    hit.Score,
			Source:      domain.SourceKeyword,
		})
	}
	return out, nil
}

func boolQuery(q ports.SourceQuery) map[string]any {
	query := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":  q.Query,
				"fields": []string{"text", "title^2"},
			},
		},
	}

	filters := make([]map[string]any, 0, 4)
	if q.Filters.ChannelID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"channel_id": q.Filters.ChannelID},
		})
	}
	if q.Filters.VideoID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"video_id": q.Filters.VideoID},
		})
	}
	if q.Filters.PublishedAfter != nil || q.Filters.PublishedBefore != nil {
		published := map[string]any{}
		if q.Filters.PublishedAfter != nil {
			published["gte"] = q.Filters.PublishedAfter.UTC().Format(time.RFC3339)
		}
		if q.Filters.PublishedBefore != nil {
			published["lte"] = q.Filters.PublishedBefore.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"published_at": published},
		})
	}
	if q.Filters.MinDurationSec > 0 || q.Filters.MaxDurationSec > 0 {
		duration := map[string]any{}
		if q.Filters.MinDurationSec > 0 {
			duration["gte"] = q.Filters.MinDurationSec
		}
		if q.Filters.MaxDurationSec > 0 {
			duration["lte"] = q.Filters.MaxDurationSec
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"duration_sec": duration},
		})
	}
	if len(filters) > 0 {
		query["filter"] = filters
	}

	return map[string]any{"bool": query}
}
