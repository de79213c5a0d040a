package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// ExperimentStore keeps experiments in process memory. It backs local runs
// and tests where a Postgres instance is not worth the setup.
type ExperimentStore struct {
	mu          sync.RWMutex
	experiments map[string]domain.Experiment
}

func NewExperimentStore() *ExperimentStore {
	return &ExperimentStore{
		experiments: make(map[string]domain.Experiment),
	}
}

func (s *ExperimentStore) Create(_ context.Context, exp *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.experiments[exp.ID]; exists {
		return fmt.Errorf("experiment %s already exists", exp.ID)
	}
	s.experiments[exp.ID] = cloneExperiment(*exp)
	return nil
}

func (s *ExperimentStore) Update(_ context.Context, exp *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.experiments[exp.ID]
	if !exists {
		return domain.WrapError(domain.ErrExperimentNotFound, "update experiment", fmt.Errorf("id %s", exp.ID))
	}
	updated := cloneExperiment(*exp)
	updated.Outcomes = stored.Outcomes
	s.experiments[exp.ID] = updated
	return nil
}

func (s *ExperimentStore) GetByID(_ context.Context, id string) (*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, exists := s.experiments[id]
	if !exists {
		return nil, domain.WrapError(domain.ErrExperimentNotFound, "get experiment", fmt.Errorf("id %s", id))
	}
	out := cloneExperiment(exp)
	return &out, nil
}

func (s *ExperimentStore) List(_ context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		if tag != "" && exp.Tag != tag {
			continue
		}
		if status != "" && exp.Status != status {
			continue
		}
		out = append(out, cloneExperiment(exp))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ExperimentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.experiments[id]; !exists {
		return domain.WrapError(domain.ErrExperimentNotFound, "delete experiment", fmt.Errorf("id %s", id))
	}
	delete(s.experiments, id)
	return nil
}

func (s *ExperimentStore) AppendOutcome(_ context.Context, id string, outcome domain.ExperimentOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, exists := s.experiments[id]
	if !exists {
		return domain.WrapError(domain.ErrExperimentNotFound, "append outcome", fmt.Errorf("id %s", id))
	}
	exp.Outcomes = append(exp.Outcomes, outcome)
	s.experiments[id] = exp
	return nil
}

func cloneExperiment(exp domain.Experiment) domain.Experiment {
	out := exp
	if exp.Parameters.Weights != nil {
		out.Parameters.Weights = make(map[domain.SourceName]float64, len(exp.Parameters.Weights))
		for k, v := range exp.Parameters.Weights {
			out.Parameters.Weights[k] = v
		}
	}
	if exp.Parameters.Sources != nil {
		out.Parameters.Sources = append([]domain.SourceName(nil), exp.Parameters.Sources...)
	}
	if exp.Outcomes != nil {
		out.Outcomes = append([]domain.ExperimentOutcome(nil), exp.Outcomes...)
	}
	return out
}
