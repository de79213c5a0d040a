package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

type fakeExperimentStore struct {
	mu          sync.Mutex
	experiments map[string]domain.Experiment
	listErr     error
}

func newFakeExperimentStore() *fakeExperimentStore {
	return &fakeExperimentStore{experiments: make(map[string]domain.Experiment)}
}

func (s *fakeExperimentStore) Create(_ context.Context, exp *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments[exp.ID] = *exp
	return nil
}

func (s *fakeExperimentStore) Update(_ context.Context, exp *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[exp.ID]; !ok {
		return domain.ErrExperimentNotFound
	}
	s.experiments[exp.ID] = *exp
	return nil
}

func (s *fakeExperimentStore) GetByID(_ context.Context, id string) (*domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[id]
	if !ok {
		return nil, domain.ErrExperimentNotFound
	}
	copied := exp
	return &copied, nil
}

func (s *fakeExperimentStore) List(_ context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		if tag != "" && exp.Tag != tag {
			continue
		}
		if status != "" && exp.Status != status {
			continue
		}
		out = append(out, exp)
	}
	return out, nil
}

func (s *fakeExperimentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[id]; !ok {
		return domain.ErrExperimentNotFound
	}
	delete(s.experiments, id)
	return nil
}

func (s *fakeExperimentStore) AppendOutcome(_ context.Context, id string, outcome domain.ExperimentOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[id]
	if !ok {
		return domain.ErrExperimentNotFound
	}
	exp.Outcomes = append(exp.Outcomes, outcome)
	s.experiments[id] = exp
	return nil
}

func TestExperimentCreateRejectsOverweightSum(t *testing.T) {
	uc := NewExperimentUseCase(newFakeExperimentStore())

	_, err := uc.Create(context.Background(), domain.Experiment{
		Name: "bad weights",
		Parameters: domain.ExperimentParameters{
			Weights: map[domain.SourceName]float64{
				domain.SourceSemantic:   0.5,
				domain.SourceKeyword:    0.3,
				domain.SourceStructured: 0.3,
			},
		},
	})
	if !domain.IsKind(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestExperimentCreateAcceptsExactSum(t *testing.T) {
	uc := NewExperimentUseCase(newFakeExperimentStore())

	exp, err := uc.Create(context.Background(), domain.Experiment{
		Name: "good weights",
		Parameters: domain.ExperimentParameters{
			Weights: map[domain.SourceName]float64{
				domain.SourceSemantic:   0.6,
				domain.SourceKeyword:    0.4,
				domain.SourceStructured: 0.0,
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.ID == "" || exp.Status != domain.ExperimentInactive {
		t.Fatalf("new experiment should be inactive with an id, got %+v", exp)
	}
}

func TestExperimentCreateRejectsOutOfRangeWeight(t *testing.T) {
	uc := NewExperimentUseCase(newFakeExperimentStore())

	_, err := uc.Create(context.Background(), domain.Experiment{
		Name: "negative weight",
		Parameters: domain.ExperimentParameters{
			Weights: map[domain.SourceName]float64{domain.SourceSemantic: -0.1},
		},
	})
	if !domain.IsKind(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestExperimentActivateStampsTimestamps(t *testing.T) {
	store := newFakeExperimentStore()
	uc := NewExperimentUseCase(store)

	created, err := uc.Create(context.Background(), domain.Experiment{Name: "exp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	activated, err := uc.Activate(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != domain.ExperimentActive || activated.ActivatedAt == nil {
		t.Fatalf("activation did not stamp: %+v", activated)
	}

	deactivated, err := uc.Deactivate(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Status != domain.ExperimentInactive || deactivated.DeactivatedAt == nil {
		t.Fatalf("deactivation did not stamp: %+v", deactivated)
	}
}

func TestExperimentListSortsNewestFirst(t *testing.T) {
	store := newFakeExperimentStore()
	uc := NewExperimentUseCase(store)

	older := domain.Experiment{ID: "old", Name: "old", CreatedAt: time.Now().Add(-time.Hour)}
	newer := domain.Experiment{ID: "new", Name: "new", CreatedAt: time.Now()}
	store.experiments["old"] = older
	store.experiments["new"] = newer

	listed, err := uc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "new" {
		t.Fatalf("expected newest first, got %+v", listed)
	}
}

func TestExperimentListRejectsUnknownStatus(t *testing.T) {
	uc := NewExperimentUseCase(newFakeExperimentStore())
	_, err := uc.List(context.Background(), "", domain.ExperimentStatus("bogus"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestActiveExperimentPicksMostRecentlyActivated(t *testing.T) {
	store := newFakeExperimentStore()
	early := time.Now().Add(-time.Hour)
	late := time.Now()

	store.experiments["a"] = domain.Experiment{ID: "a", Status: domain.ExperimentActive, ActivatedAt: &early}
	store.experiments["b"] = domain.Experiment{ID: "b", Status: domain.ExperimentActive, ActivatedAt: &late}
	store.experiments["c"] = domain.Experiment{ID: "c", Status: domain.ExperimentInactive}

	got := activeExperiment(context.Background(), store)
	if got == nil || got.ID != "b" {
		t.Fatalf("expected most recently activated experiment, got %+v", got)
	}
}

func TestActiveExperimentToleratesStoreErrors(t *testing.T) {
	store := newFakeExperimentStore()
	store.listErr = domain.ErrTemporary
	if got := activeExperiment(context.Background(), store); got != nil {
		t.Fatalf("store errors must degrade to no experiment, got %+v", got)
	}
}
