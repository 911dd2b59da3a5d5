package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config holds the backoff schedule for one dependency
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultConfig suits a dependency that may still be starting next to us,
// e.g. Postgres or Redis in the same compose stack
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying, e.g. rejected credentials or a
// database that does not exist. Do returns the inner error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Func is one attempt at reaching a dependency
type Func[T any] func(ctx context.Context) (T, error)

// Do runs fn until it succeeds, returns a Permanent error, ctx ends or the
// attempts run out. Only startup connects go through here; request paths
// are never retried.
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, dependency string, fn Func[T]) (T, error) {
	var zero T
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("dependency reachable", slog.String("dependency", dependency), slog.Int("attempt", attempt))
			}
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, fmt.Errorf("%s: %w", dependency, perm.err)
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		wait := backoff(attempt-1, cfg)
		log.Warn("dependency not reachable, retrying",
			slog.String("dependency", dependency),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s unreachable after %d attempts: %w", dependency, attempts, lastErr)
}

func backoff(n int, cfg *Config) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(cfg.InitialBackoff) * math.Pow(mult, float64(n)))
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	return d
}
