package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/checkout/internal/bootstrap"
	infraRedis "github.com/cassiomorais/checkout/internal/infrastructure/redis"
	"github.com/cassiomorais/checkout/internal/worker"
	"github.com/cassiomorais/checkout/pkg/retry"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "checkout-worker", "checkout_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker

	streamProducer := infraRedis.NewStreamProducer(app.Redis, workerCfg.Stream)
	relay := worker.NewOutboxRelay(app.TxManager, app.OutboxRepo, streamProducer,
		workerCfg.BatchSize, workerCfg.OutboxPollInterval, observer(app), app.Logger)

	lockTTL := app.Config.Payment.LockTTL
	reconciler := worker.NewReconciler(app.Payments, func(reference string) worker.Lock {
		return infraRedis.NewDistributedLock(app.Redis, infraRedis.TransactionLockKey(reference), lockTTL)
	}, worker.ReconcilerConfig{
		Interval:  workerCfg.ReconcileInterval,
		MinAge:    workerCfg.ReconcileMinAge,
		BatchSize: workerCfg.ReconcileBatchSize,
		Retry: retry.Config{
			MaxAttempts:  uint(max(workerCfg.MaxRetries, 1)),
			InitialDelay: workerCfg.RetryDelay,
			MaxDelay:     10 * workerCfg.RetryDelay,
		},
	}, observer(app), app.Logger)

	janitor := worker.NewJanitor(map[string]worker.Cleaner{
		"idempotency_keys": app.IdempotencyRepo,
		"outbox":           app.OutboxRepo,
	}, time.Hour, app.Logger)

	app.Logger.Info().
		Str("stream", streamProducer.Stream()).
		Str("instance_id", app.Config.InstanceID).
		Msg("Worker started")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls the outbox table and publishes to Redis Streams).
	g.Go(func() error { return relay.Run(gCtx) })

	// 2. Reconciler (re-verifies stale pending transactions).
	g.Go(func() error { return reconciler.Run(gCtx) })

	// 3. Expired idempotency keys and published events.
	g.Go(func() error { return janitor.Run(gCtx) })

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func observer(app *bootstrap.App) worker.TaskObserver {
	if app.Metrics == nil {
		return nil
	}
	return app.Metrics
}
