package ports

import (
	"context"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// Retriever is the inbound contract for the fused retrieval pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error)
}

// AnswerService produces a citation-grounded answer on top of retrieval.
type AnswerService interface {
	Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, *domain.RetrievalResponse, error)
}

// ExperimentService is the inbound contract for operator experiment tooling.
type ExperimentService interface {
	Create(ctx context.Context, exp domain.Experiment) (*domain.Experiment, error)
	Update(ctx context.Context, exp domain.Experiment) (*domain.Experiment, error)
	Get(ctx context.Context, id string) (*domain.Experiment, error)
	List(ctx context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error)
	Delete(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) (*domain.Experiment, error)
	Deactivate(ctx context.Context, id string) (*domain.Experiment, error)
}
