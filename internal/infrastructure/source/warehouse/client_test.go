package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
)

func newClientWithMock(t *testing.T) (*Client, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return New(db, nil), mock, func() { _ = db.Close() }
}

func chunkColumns() []string {
	return []string{"chunk_id", "video_id", "title", "text", "token_count", "content_hash", "rank"}
}

func TestQueryMapsRowsToSearchResults(t *testing.T) {
	client, mock, done := newClientWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT c.chunk_id, c.video_id, v.title").
		WithArgs("goroutines", 5).
		WillReturnRows(sqlmock.NewRows(chunkColumns()).
			AddRow("c1", "v1", "Go talk", "about goroutines", 42, "h1", 0.7).
			AddRow("c2", "v2", "Another", "more text", 10, nil, 0.3))

	reply := client.Query(context.Background(), ports.SourceQuery{Query: "goroutines", TopK: 5})
	if reply.Status != domain.SourceStatusSuccess {
		t.Fatalf("status = %s (%s), want success", reply.Status, reply.Message)
	}
	if len(reply.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(reply.Results))
	}
	first := reply.Results[0]
	if first.ChunkID != "c1" || first.RawScore != 0.7 || first.Source != domain.SourceStructured {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if reply.Results[1].ContentHash != "" {
		t.Fatalf("null content hash must map to empty string, got %q", reply.Results[1].ContentHash)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryAppliesMetadataFilters(t *testing.T) {
	client, mock, done := newClientWithMock(t)
	defer done()

	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("v.channel_id = \\$2 AND v.published_at >= \\$3 AND v.duration_sec <= \\$4").
		WithArgs("goroutines", "ch-1", after, 600, 3).
		WillReturnRows(sqlmock.NewRows(chunkColumns()))

	reply := client.Query(context.Background(), ports.SourceQuery{
		Query: "goroutines",
		TopK:  3,
		Filters: domain.SearchFilter{
			ChannelID:      "ch-1",
			PublishedAfter: &after,
			MaxDurationSec: 600,
		},
	})
	if reply.Status != domain.SourceStatusSuccess {
		t.Fatalf("status = %s (%s), want success", reply.Status, reply.Message)
	}
	if len(reply.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(reply.Results))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQuerySkipsWhenNoDatabase(t *testing.T) {
	client := New(nil, nil)
	reply := client.Query(context.Background(), ports.SourceQuery{Query: "q", TopK: 3})
	if reply.Status != domain.SourceStatusSkipped {
		t.Fatalf("status = %s, want skipped", reply.Status)
	}
}

func TestQueryReportsDatabaseFailureAsError(t *testing.T) {
	client, mock, done := newClientWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT c.chunk_id").
		WillReturnError(errors.New("connection refused"))

	reply := client.Query(context.Background(), ports.SourceQuery{Query: "q", TopK: 3})
	if reply.Status != domain.SourceStatusError {
		t.Fatalf("status = %s, want error", reply.Status)
	}
	if reply.Message == "" {
		t.Fatal("expected a diagnostic message")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
