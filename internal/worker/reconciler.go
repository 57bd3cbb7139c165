package worker

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/pkg/retry"
	"github.com/rs/zerolog"
)

const taskReconcile = "reconcile"

// Lock guards one reference across worker instances. *redis.DistributedLock implements it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock for a transaction reference.
type LockFactory func(reference string) Lock

// PaymentReconciler is the part of the payment service the reconciler drives.
type PaymentReconciler interface {
	PendingTransactions(ctx context.Context, minAge time.Duration, limit int) ([]*transaction.Transaction, error)
	Reconcile(ctx context.Context, reference string) (*transaction.Transaction, error)
}

type ReconcilerConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	Retry     retry.Config
}

// ReconcileStats summarizes one pass.
type ReconcileStats struct {
	Checked int
	Settled int
	Skipped int
	Failed  int
}

// Reconciler re-verifies transactions that stayed pending, for customers who
// never returned to the callback page and charges whose webhook was lost.
type Reconciler struct {
	payments PaymentReconciler
	locks    LockFactory
	cfg      ReconcilerConfig
	observer TaskObserver
	logger   zerolog.Logger
}

func NewReconciler(payments PaymentReconciler, locks LockFactory, cfg ReconcilerConfig, observer TaskObserver, logger zerolog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Retry.RetryIf == nil {
		cfg.Retry.RetryIf = isTemporary
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Reconciler{
		payments: payments,
		locks:    locks,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With().Str("task", taskReconcile).Logger(),
	}
}

// Run reconciles until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Dur("min_age", r.cfg.MinAge).
		Msg("reconciler started")
	return runEvery(ctx, r.cfg.Interval, r.logger, func(ctx context.Context) error {
		stats, err := r.RunOnce(ctx)
		if err != nil {
			return err
		}
		if stats.Checked > 0 {
			r.logger.Info().
				Int("checked", stats.Checked).
				Int("settled", stats.Settled).
				Int("skipped", stats.Skipped).
				Int("failed", stats.Failed).
				Msg("reconcile pass finished")
		}
		return nil
	})
}

// RunOnce reconciles one batch of stale pending transactions. References
// locked by another worker are skipped.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	pending, err := r.payments.PendingTransactions(ctx, r.cfg.MinAge, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, tx := range pending {
		if ctx.Err() != nil {
			return stats, nil
		}
		stats.Checked++

		switch status := r.reconcileOne(ctx, tx.Reference); status {
		case "settled":
			stats.Settled++
		case "skipped":
			stats.Skipped++
		case "error":
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, reference string) string {
	log := r.logger.With().Str("reference", reference).Logger()
	start := time.Now()

	lock := r.locks(reference)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not acquire reconcile lock")
		r.observer.ObserveWorkerTask(taskReconcile, "skipped", time.Since(start))
		return "skipped"
	}
	if !acquired {
		log.Debug().Msg("reference locked by another worker")
		r.observer.ObserveWorkerTask(taskReconcile, "skipped", time.Since(start))
		return "skipped"
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("failed to release reconcile lock")
		}
	}()

	retryCfg := r.cfg.Retry
	retryCfg.OnRetry = func(n uint, err error) {
		log.Warn().Err(err).Uint("attempt", n+1).Msg("gateway verify failed, retrying")
	}
	tx, err := retry.DoWithResult(ctx, retryCfg, func() (*transaction.Transaction, error) {
		return r.payments.Reconcile(ctx, reference)
	})
	if err != nil {
		log.Error().Err(err).Msg("reconcile failed")
		r.observer.ObserveWorkerTask(taskReconcile, "error", time.Since(start))
		return "error"
	}

	status := "pending"
	if tx.Status != transaction.StatusPending {
		status = "settled"
		log.Info().Str("status", string(tx.Status)).Msg("pending transaction reconciled")
	}
	r.observer.ObserveWorkerTask(taskReconcile, status, time.Since(start))
	return status
}

// isTemporary reports whether a reconcile error is worth retrying right away.
// An open circuit breaker is not: the next pass picks the reference up again.
func isTemporary(err error) bool {
	var gwErr *domainErrors.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Temporary() && !errors.Is(err, domainErrors.ErrGatewayUnavailable)
	}
	return false
}
