package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/societyhub/internal/observability/metrics"
)

const auditLockKey = "societyhub:locks:bootstrap-audit"

// BootstrapCounter counts residents still holding their provisioned password
type BootstrapCounter interface {
	CountBootstrap(ctx context.Context) (int, error)
}

// Locker elects a single replica per tick. *redis.Client satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

// BootstrapAuditWorker periodically publishes how many residents have never
// replaced their bootstrap password. With a locker only one replica audits
// per interval.
type BootstrapAuditWorker struct {
	residents BootstrapCounter
	locker    Locker
	logger    *slog.Logger
	interval  time.Duration
}

// NewBootstrapAuditWorker creates the worker. locker may be nil for a single
// instance deployment.
func NewBootstrapAuditWorker(residents BootstrapCounter, locker Locker, interval time.Duration, logger *slog.Logger) *BootstrapAuditWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &BootstrapAuditWorker{
		residents: residents,
		locker:    locker,
		logger:    logger.With(slog.String("worker", "bootstrap_audit")),
		interval:  interval,
	}
}

// Run audits once immediately and then on every tick until ctx is done
func (w *BootstrapAuditWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("bootstrap audit worker started", slog.Duration("interval", w.interval))
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("bootstrap audit worker stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *BootstrapAuditWorker) tick(ctx context.Context) {
	count, err := w.RunOnce(ctx)
	switch {
	case errors.Is(err, redis.ErrLockHeld):
		w.logger.Debug("audit skipped, another replica holds the lock")
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("bootstrap audit failed", slog.String("error", err.Error()))
	default:
		w.logger.Info("bootstrap audit complete", slog.Int("bootstrap_residents", count))
	}
}

// RunOnce performs a single audit and updates the gauge. It returns
// redis.ErrLockHeld when another replica is auditing.
func (w *BootstrapAuditWorker) RunOnce(ctx context.Context) (int, error) {
	if w.locker != nil {
		release, err := w.locker.TryLock(ctx, auditLockKey, w.interval/2)
		if err != nil {
			return 0, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	count, err := w.residents.CountBootstrap(ctx)
	if err != nil {
		return 0, fmt.Errorf("count bootstrap residents: %w", err)
	}

	metrics.SetBootstrapResidents(count)
	return count, nil
}
