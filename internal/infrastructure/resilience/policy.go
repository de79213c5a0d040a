package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerCooldown     time.Duration
	BreakerProbeCalls   uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       2,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,

		BreakerEnabled:      true,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     15 * time.Second,
		BreakerProbeCalls:   2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.BackoffMultiplier < 1.0 {
		out.BackoffMultiplier = def.BackoffMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerCooldown <= 0 {
		out.BreakerCooldown = def.BreakerCooldown
	}
	if out.BreakerProbeCalls == 0 {
		out.BreakerProbeCalls = def.BreakerProbeCalls
	}

	return out
}

// Classification decides how a failed backend call is treated: whether the
// call is retried within the same request, and whether it counts against the
// source's circuit breaker.
type Classification struct {
	Retryable     bool
	RecordFailure bool
}

type Classifier func(err error) Classification

// StatusError carries the HTTP status of a rejected backend response so the
// classifier can distinguish overload from caller mistakes.
type StatusError struct {
	Status  int
	Backend string
	Detail  string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Status, e.Detail)
}

// ClassifyBackendError is the classifier used for retrieval source queries.
// Context cancellation means the caller gave up, the source is not at fault.
// A deadline on the per-source budget is the source being slow and counts
// against its breaker, but retrying would only spend budget already gone.
func ClassifyBackendError(err error) Classification {
	if err == nil {
		return Classification{}
	}

	if errors.Is(err, context.Canceled) {
		return Classification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Retryable: false, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Status == http.StatusTooManyRequests:
			return Classification{Retryable: true, RecordFailure: true}
		case statusErr.Status >= 500:
			return Classification{Retryable: true, RecordFailure: true}
		default:
			return Classification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{Retryable: true, RecordFailure: true}
	}

	if domain.IsKind(err, domain.ErrTemporary) {
		return Classification{Retryable: true, RecordFailure: true}
	}

	return Classification{Retryable: false, RecordFailure: true}
}
