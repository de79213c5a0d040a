package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func retryingClassifier(target error) Classifier {
	return func(err error) Classification {
		return Classification{
			Retryable:     errors.Is(err, target),
			RecordFailure: true,
		}
	}
}

func TestGuardRetriesRetryableFailure(t *testing.T) {
	errFlaky := errors.New("connection reset")
	guard := NewGuard(Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	}, retryingClassifier(errFlaky), nil)

	attempts := 0
	err := guard.Do(context.Background(), "keyword", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestGuardDoesNotRetryPermanentFailure(t *testing.T) {
	guard := NewGuard(Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BreakerEnabled: false,
	}, nil, nil)

	attempts := 0
	badRequest := &StatusError{Status: http.StatusBadRequest, Backend: "opensearch"}
	err := guard.Do(context.Background(), "keyword", func(context.Context) error {
		attempts++
		return badRequest
	})
	if !errors.Is(err, badRequest) {
		t.Fatalf("expected the status error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestGuardOpensBreakerAfterFailures(t *testing.T) {
	errDown := errors.New("backend down")
	guard := NewGuard(Config{
		MaxAttempts:         1,
		InitialBackoff:      time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     50 * time.Millisecond,
		BreakerProbeCalls:   1,
	}, func(error) Classification {
		return Classification{Retryable: false, RecordFailure: true}
	}, nil)

	for i := 0; i < 2; i++ {
		err := guard.Do(context.Background(), "semantic", func(context.Context) error {
			return errDown
		})
		if !errors.Is(err, errDown) {
			t.Fatalf("expected backend error on call %d, got %v", i, err)
		}
	}

	err := guard.Do(context.Background(), "semantic", func(context.Context) error {
		t.Fatalf("breaker should be open and must not reach the backend")
		return nil
	})
	if !Open(err) {
		t.Fatalf("expected open-breaker error, got %v", err)
	}
}

func TestGuardKeepsBreakersPerBackend(t *testing.T) {
	errDown := errors.New("backend down")
	guard := NewGuard(Config{
		MaxAttempts:         1,
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.1,
		BreakerCooldown:     time.Minute,
	}, func(error) Classification {
		return Classification{RecordFailure: true}
	}, nil)

	if err := guard.Do(context.Background(), "semantic", func(context.Context) error {
		return errDown
	}); !errors.Is(err, errDown) {
		t.Fatalf("expected backend error, got %v", err)
	}

	called := false
	if err := guard.Do(context.Background(), "structured", func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("healthy backend must not share the tripped breaker: %v", err)
	}
	if !called {
		t.Fatal("expected the healthy backend to be called")
	}
}

func TestClassifyBackendError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Classification
	}{
		{"canceled", context.Canceled, Classification{Retryable: false, RecordFailure: false}},
		{"deadline", context.DeadlineExceeded, Classification{Retryable: false, RecordFailure: true}},
		{"throttled", &StatusError{Status: http.StatusTooManyRequests, Backend: "qdrant"}, Classification{Retryable: true, RecordFailure: true}},
		{"server error", &StatusError{Status: http.StatusBadGateway, Backend: "qdrant"}, Classification{Retryable: true, RecordFailure: true}},
		{"client error", &StatusError{Status: http.StatusNotFound, Backend: "qdrant"}, Classification{Retryable: false, RecordFailure: false}},
		{"unknown", errors.New("boom"), Classification{Retryable: false, RecordFailure: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyBackendError(tc.err)
			if got != tc.want {
				t.Fatalf("classify(%v) = %+v, want %+v", tc.err, got, tc.want)
			}
		})
	}
}
