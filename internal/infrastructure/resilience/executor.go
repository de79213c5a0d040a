package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Guard wraps outbound backend calls with bounded retries and a per-backend
// circuit breaker. The retrieval engine shares one guard across its source
// adapters so a flapping backend trips its own breaker without taking the
// other sources with it.
type Guard struct {
	cfg      Config
	classify Classifier
	log      *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewGuard(cfg Config, classify Classifier, log *slog.Logger) *Guard {
	if classify == nil {
		classify = ClassifyBackendError
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		cfg:      cfg.normalize(),
		classify: classify,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Do runs fn under the backend's breaker, retrying retryable failures with
// exponential backoff until attempts or the context run out.
func (g *Guard) Do(ctx context.Context, backend string, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: call for %q is nil", backend)
	}
	name := strings.TrimSpace(backend)
	if name == "" {
		name = "unknown"
	}

	if !g.cfg.BreakerEnabled {
		return g.retry(ctx, name, fn)
	}

	_, err := g.breaker(name).Execute(func() (any, error) {
		return nil, g.retry(ctx, name, fn)
	})
	return err
}

func (g *Guard) retry(ctx context.Context, backend string, fn func(context.Context) error) error {
	backoff := g.cfg.InitialBackoff

	var err error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		class := g.classify(err)
		if !class.Retryable || attempt == g.cfg.MaxAttempts {
			return err
		}

		g.log.Warn("backend retry",
			slog.String("backend", backend),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * g.cfg.BackoffMultiplier)
		if backoff > g.cfg.MaxBackoff {
			backoff = g.cfg.MaxBackoff
		}
	}
	return err
}

func (g *Guard) breaker(backend string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[backend]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        backend,
		MaxRequests: g.cfg.BreakerProbeCalls,
		Timeout:     g.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < g.cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= g.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !g.classify(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.log.Warn("backend breaker state change",
				slog.String("backend", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	g.breakers[backend] = b
	return b
}

// Open reports whether err came from a breaker refusing the call outright.
func Open(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
