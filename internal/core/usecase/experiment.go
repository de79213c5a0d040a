package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
)

// ExperimentUseCase is the operator-facing CRUD surface over experiments.
// The store is injected; there is no process-wide experiment state.
type ExperimentUseCase struct {
	store ports.ExperimentStore
	now   func() time.Time
}

func NewExperimentUseCase(store ports.ExperimentStore) *ExperimentUseCase {
	return &ExperimentUseCase{
		store: store,
		now:   time.Now,
	}
}

func (uc *ExperimentUseCase) Create(ctx context.Context, exp domain.Experiment) (*domain.Experiment, error) {
	if err := validateExperimentInput(exp); err != nil {
		return nil, err
	}

	created := exp
	created.ID = uuid.NewString()
	created.Status = domain.ExperimentInactive
	created.CreatedAt = uc.now().UTC()
	created.UpdatedAt = created.CreatedAt
	created.ActivatedAt = nil
	created.DeactivatedAt = nil
	created.Outcomes = nil

	if err := uc.store.Create(ctx, &created); err != nil {
		return nil, fmt.Errorf("create experiment: %w", err)
	}
	return &created, nil
}

func (uc *ExperimentUseCase) Update(ctx context.Context, exp domain.Experiment) (*domain.Experiment, error) {
	if strings.TrimSpace(exp.ID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update experiment", fmt.Errorf("id is required"))
	}
	if err := validateExperimentInput(exp); err != nil {
		return nil, err
	}

	existing, err := uc.store.GetByID(ctx, exp.ID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = exp.Name
	updated.Tag = exp.Tag
	updated.Parameters = exp.Parameters
	updated.UpdatedAt = uc.now().UTC()

	if err := uc.store.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update experiment: %w", err)
	}
	return &updated, nil
}

func (uc *ExperimentUseCase) Get(ctx context.Context, id string) (*domain.Experiment, error) {
	return uc.store.GetByID(ctx, id)
}

// List returns experiments filtered by tag and status, newest first.
func (uc *ExperimentUseCase) List(ctx context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error) {
	if status != "" && !status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list experiments", fmt.Errorf("unknown status %q", status))
	}

	experiments, err := uc.store.List(ctx, tag, status)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	sort.SliceStable(experiments, func(i, j int) bool {
		return experiments[i].CreatedAt.After(experiments[j].CreatedAt)
	})
	return experiments, nil
}

func (uc *ExperimentUseCase) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete experiment", fmt.Errorf("id is required"))
	}
	return uc.store.Delete(ctx, id)
}

func (uc *ExperimentUseCase) Activate(ctx context.Context, id string) (*domain.Experiment, error) {
	return uc.toggle(ctx, id, domain.ExperimentActive)
}

func (uc *ExperimentUseCase) Deactivate(ctx context.Context, id string) (*domain.Experiment, error) {
	return uc.toggle(ctx, id, domain.ExperimentInactive)
}

func (uc *ExperimentUseCase) toggle(ctx context.Context, id string, status domain.ExperimentStatus) (*domain.Experiment, error) {
	exp, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stamp := uc.now().UTC()
	exp.Status = status
	exp.UpdatedAt = stamp
	if status == domain.ExperimentActive {
		exp.ActivatedAt = &stamp
	} else {
		exp.DeactivatedAt = &stamp
	}

	if err := uc.store.Update(ctx, exp); err != nil {
		return nil, fmt.Errorf("toggle experiment: %w", err)
	}
	return exp, nil
}

func validateExperimentInput(exp domain.Experiment) error {
	if strings.TrimSpace(exp.Name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate experiment", fmt.Errorf("name is required"))
	}
	if err := domain.ValidateWeights(exp.Parameters.Weights); err != nil {
		return err
	}
	if exp.Parameters.TopK < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate experiment", fmt.Errorf("top_k must be positive"))
	}
	if exp.Parameters.TimeoutMs < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate experiment", fmt.Errorf("timeout_ms must be positive"))
	}
	if exp.Parameters.RRFK < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate experiment", fmt.Errorf("rrf_k must be positive"))
	}
	for _, source := range exp.Parameters.Sources {
		if !source.Valid() {
			return domain.WrapError(domain.ErrInvalidInput, "validate experiment", fmt.Errorf("unknown source %q", source))
		}
	}
	return nil
}

// activeExperiment resolves the experiment the router should honor. When
// several are active, the most recently activated one wins.
func activeExperiment(ctx context.Context, store ports.ExperimentStore) *domain.Experiment {
	if store == nil {
		return nil
	}
	active, err := store.List(ctx, "", domain.ExperimentActive)
	if err != nil || len(active) == 0 {
		return nil
	}

	best := active[0]
	for _, exp := range active[1:] {
		if activationTime(exp).After(activationTime(best)) {
			best = exp
		}
	}
	return &best
}

func activationTime(exp domain.Experiment) time.Time {
	if exp.ActivatedAt != nil {
		return *exp.ActivatedAt
	}
	return exp.UpdatedAt
}
