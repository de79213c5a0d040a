package ports

import (
	"context"
	"time"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// SourceQuery is the uniform request every backend adapter receives.
type SourceQuery struct {
	Query   string
	Filters domain.SearchFilter
	TopK    int
}

// SourceReply is the uniform reply. Adapters never return a Go error to the
// engine: not-configured is Skipped, transient failure is Error, and both
// carry an empty result list.
type SourceReply struct {
	Results []domain.SearchResult
	Status  domain.SourceStatus
	Message string
}

// SourceAdapter is the boundary to one of the three external stores. The
// caller owns the per-call timeout via ctx; adapters must not block past it.
type SourceAdapter interface {
	Name() domain.SourceName
	Query(ctx context.Context, q SourceQuery) SourceReply
}

// ResultCache is the TTL-keyed reuse surface for fused responses. Expired
// entries behave as misses and are removed lazily on access.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.RetrievalResponse, bool)
	Set(ctx context.Context, key string, value *domain.RetrievalResponse, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// ExperimentStore persists experiment entities. Implementations need only
// per-key read-after-write consistency; concurrent edits resolve
// last-writer-wins.
type ExperimentStore interface {
	Create(ctx context.Context, exp *domain.Experiment) error
	Update(ctx context.Context, exp *domain.Experiment) error
	GetByID(ctx context.Context, id string) (*domain.Experiment, error)
	List(ctx context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error)
	Delete(ctx context.Context, id string) error
	AppendOutcome(ctx context.Context, id string, outcome domain.ExperimentOutcome) error
}

// AnswerGenerator is the answer-generation boundary collaborator. The
// guidance string carries the trust-tier instruction for the model.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.FusedResult, guidance string) (*domain.Answer, error)
}

// TokenCounter estimates token usage for context budgeting.
type TokenCounter interface {
	Count(text string) int
}

// EventPublisher emits retrieval traces and experiment outcomes for offline
// analysis. Publishing is best-effort and never fails the request.
type EventPublisher interface {
	PublishRetrievalTrace(ctx context.Context, resp *domain.RetrievalResponse)
	PublishExperimentOutcome(ctx context.Context, experimentID string, outcome domain.ExperimentOutcome)
}
