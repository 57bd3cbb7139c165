// Package worker holds the background loops run by cmd/worker: relaying
// outbox entries to the event stream, reconciling stale pending transactions
// and pruning expired idempotency keys.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TaskObserver receives per-item outcomes. *observability.Metrics implements it.
type TaskObserver interface {
	ObserveWorkerTask(task, status string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveWorkerTask(string, string, time.Duration) {}

// runEvery calls fn immediately and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, logger zerolog.Logger, fn func(ctx context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("worker pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
