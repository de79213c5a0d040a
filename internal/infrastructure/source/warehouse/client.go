package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
	"github.com/olshev/transcript-insight/internal/infrastructure/resilience"
)

// Client queries the Postgres metadata warehouse with full-text ranking over
// transcript chunks. It is the structured leg of the fusion engine and the
// only source that can answer metadata filters natively.
type Client struct {
	db    *sql.DB
	guard *resilience.Guard
}

func New(db *sql.DB, guard *resilience.Guard) *Client {
	return &Client{db: db, guard: guard}
}

func (c *Client) Name() domain.SourceName {
	return domain.SourceStructured
}

func (c *Client) Query(ctx context.Context, q ports.SourceQuery) ports.SourceReply {
	if c.db == nil {
		return ports.SourceReply{
			Status:  domain.SourceStatusSkipped,
			Message: "structured source not configured",
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
		err = c.guard.Do(ctx, "warehouse", call)
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
	query, args := buildQuery(q)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("warehouse query: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		var contentHash sql.NullString
		if err := rows.Scan(&r.ChunkID, &r.VideoID, &r.Title, &r.Text, &r.TokenCount, &contentHash, &r.RawScore); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		r.ContentHash = contentHash.String
		r.Source = domain.SourceStructured
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return out, nil
}

// buildQuery assembles the ranked full-text query with whatever metadata
// predicates the request carries. Placeholders are numbered in append order.
func buildQuery(q ports.SourceQuery) (string, []any) {
	args := []any{q.Query}
	conds := []string{"c.search_vector @@ websearch_to_tsquery('english', $1)"}

	if q.Filters.ChannelID != "" {
		args = append(args, q.Filters.ChannelID)
		conds = append(conds, fmt.Sprintf("v.channel_id = $%d", len(args)))
	}
	if q.Filters.VideoID != "" {
		args = append(args, q.Filters.VideoID)
		conds = append(conds, fmt.Sprintf("c.video_id = $%d", len(args)))
	}
	if q.Filters.PublishedAfter != nil {
		args = append(args, q.Filters.PublishedAfter.UTC())
		conds = append(conds, fmt.Sprintf("v.published_at >= $%d", len(args)))
	}
	if q.Filters.PublishedBefore != nil {
		args = append(args, q.Filters.PublishedBefore.UTC())
		conds = append(conds, fmt.Sprintf("v.published_at <= $%d", len(args)))
	}
	if q.Filters.MinDurationSec > 0 {
		args = append(args, q.Filters.MinDurationSec)
		conds = append(conds, fmt.Sprintf("v.duration_sec >= $%d", len(args)))
	}
	if q.Filters.MaxDurationSec > 0 {
		args = append(args, q.Filters.MaxDurationSec)
		conds = append(conds, fmt.Sprintf("v.duration_sec <= $%d", len(args)))
	}

	args = append(args, q.TopK)
	query := fmt.Sprintf(`
SELECT c.chunk_id, c.video_id, v.title, c.text, c.token_count, c.content_hash,
       ts_rank(c.search_vector, websearch_to_tsquery('english', $1)) AS rank
FROM transcript_chunks c
JOIN videos v ON v.video_id = c.video_id
WHERE %s
ORDER BY rank DESC
LIMIT $%d
`, strings.Join(conds, " AND "), len(args))

	return query, args
}
