package domain

import (
	"fmt"
	"math"
	"time"
)

type ExperimentStatus string

const (
	ExperimentActive    ExperimentStatus = "active"
	ExperimentInactive  ExperimentStatus = "inactive"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentArchived  ExperimentStatus = "archived"
)

func (s ExperimentStatus) Valid() bool {
	switch s {
	case ExperimentActive, ExperimentInactive, ExperimentCompleted, ExperimentArchived:
		return true
	}
	return false
}

// ExperimentParameters are the runtime-tunable knobs of the fusion pipeline.
// Zero values mean "use the engine default".
type ExperimentParameters struct {
	Weights         map[SourceName]float64 `json:"weights,omitempty"`
	TopK            int                    `json:"top_k,omitempty"`
	TimeoutMs       int                    `json:"timeout_ms,omitempty"`
	FusionAlgorithm string                 `json:"fusion_algorithm,omitempty"`
	RRFK            int                    `json:"rrf_k,omitempty"`
	RerankEnabled   bool                   `json:"rerank_enabled,omitempty"`
	Sources         []SourceName           `json:"sources,omitempty"`
}

// ExperimentOutcome is one append-only observation recorded against an
// experiment after a request served under it.
type ExperimentOutcome struct {
	TraceID    string    `json:"trace_id"`
	Coverage   float64   `json:"coverage"`
	ResultLen  int       `json:"result_len"`
	Trust      TrustTier `json:"trust"`
	LatencyMs  int64     `json:"latency_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Experiment struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Tag           string               `json:"tag,omitempty"`
	Parameters    ExperimentParameters `json:"parameters"`
	Status        ExperimentStatus     `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	ActivatedAt   *time.Time           `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time           `json:"deactivated_at,omitempty"`
	Outcomes      []ExperimentOutcome  `json:"outcomes,omitempty"`
}

const weightSumTolerance = 0.01

// ValidateWeights enforces the weight contract: each weight in [0,1], and if
// all three sources carry a weight they must sum to 1.0 within the tolerance.
func ValidateWeights(weights map[SourceName]float64) error {
	if len(weights) == 0 {
		return nil
	}

	sum := 0.0
	for source, w := range weights {
		if !source.Valid() {
			return WrapError(ErrInvalidWeights, "validate weights", fmt.Errorf("unknown source %q", source))
		}
		if w < 0 || w > 1 {
			return WrapError(ErrInvalidWeights, "validate weights", fmt.Errorf("weight for %s out of [0,1]: %v", source, w))
		}
		sum += w
	}

	if len(weights) == len(CanonicalSourceOrder) && math.Abs(sum-1.0) > weightSumTolerance {
		return WrapError(ErrInvalidWeights, "validate weights", fmt.Errorf("weights sum to %.3f, want 1.0±%.2f", sum, weightSumTolerance))
	}
	return nil
}
