package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 50ms)
	MaxInterval         time.Duration // Maximum retry interval (default 2s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 10s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ResilientStore wraps a Store with retry on transient SQLite contention and
// a circuit breaker that stops hammering a database that keeps failing.
type ResilientStore struct {
	inner  Store
	cb     *gobreaker.CircuitBreaker
	retry  RetryConfig
	logger *zap.Logger
}

// NewResilientStore wraps inner. A nil logger disables logging.
func NewResilientStore(inner Store, retry RetryConfig, logger *zap.Logger) *ResilientStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sqlite",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			// Missing rows and caller cancellation say nothing about database health.
			if err == nil {
				return true
			}
			if errors.Is(err, ErrProjectNotFound) {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &ResilientStore{inner: inner, cb: cb, retry: retry, logger: logger}
}

// State reports the circuit breaker state.
func (r *ResilientStore) State() gobreaker.State {
	return r.cb.State()
}

func (r *ResilientStore) SaveProject(ctx context.Context, rec *ProjectRecord) error {
	_, err := do(ctx, r, "save", func() (struct{}, error) {
		return struct{}{}, r.inner.SaveProject(ctx, rec)
	})
	return err
}

func (r *ResilientStore) LoadProject(ctx context.Context, projectID string) (*ProjectRecord, error) {
	return do(ctx, r, "load", func() (*ProjectRecord, error) {
		return r.inner.LoadProject(ctx, projectID)
	})
}

func (r *ResilientStore) FindProject(ctx context.Context, name string) (string, error) {
	return do(ctx, r, "find", func() (string, error) {
		return r.inner.FindProject(ctx, name)
	})
}

func (r *ResilientStore) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	return do(ctx, r, "list", func() ([]ProjectSummary, error) {
		return r.inner.ListProjects(ctx)
	})
}

func (r *ResilientStore) DeleteProject(ctx context.Context, projectID string) error {
	_, err := do(ctx, r, "delete", func() (struct{}, error) {
		return struct{}{}, r.inner.DeleteProject(ctx, projectID)
	})
	return err
}

// Close closes the wrapped store. Not retried.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}

// do runs fn through the circuit breaker, retrying transient failures with
// exponential backoff.
func do[T any](ctx context.Context, r *ResilientStore, op string, fn func() (T, error)) (T, error) {
	var out T
	attempt := 0

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		attempt++

		result, err := r.cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil || !isTransient(err) {
				return backoff.Permanent(err)
			}
			r.logger.Debug("retrying store operation",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}

		out = result.(T)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retry.InitialInterval
	policy.MaxInterval = r.retry.MaxInterval
	policy.MaxElapsedTime = r.retry.MaxElapsedTime
	policy.Multiplier = r.retry.Multiplier
	policy.RandomizationFactor = r.retry.RandomizationFactor

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// isTransient reports whether err is SQLite lock contention worth retrying.
func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
