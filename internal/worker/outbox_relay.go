package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/outbox"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/rs/zerolog"
)

const taskOutbox = "outbox"

// Publisher appends an event to the transaction stream. *redis.StreamProducer implements it.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, eventID, aggregateID, eventType string, data map[string]any) (string, error)
}

// OutboxRelay moves pending outbox entries to the event stream. Entries are
// claimed inside a database transaction, so several workers can relay
// concurrently without publishing the same entry twice in one pass.
type OutboxRelay struct {
	txManager  service.TransactionManager
	outboxRepo outbox.Repository
	publisher  Publisher
	batchSize  int
	interval   time.Duration
	observer   TaskObserver
	logger     zerolog.Logger
}

func NewOutboxRelay(txManager service.TransactionManager, outboxRepo outbox.Repository, publisher Publisher, batchSize int, interval time.Duration, observer TaskObserver, logger zerolog.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &OutboxRelay{
		txManager:  txManager,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		batchSize:  batchSize,
		interval:   interval,
		observer:   observer,
		logger:     logger.With().Str("task", taskOutbox).Logger(),
	}
}

// Run relays until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("outbox relay started")
	return runEvery(ctx, r.interval, r.logger, func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		return err
	})
}

// RunOnce relays one batch and returns the number of entries published.
// A publish failure counts against the entry's retry budget and does not stop
// the batch.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.outboxRepo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			start := time.Now()
			_, err := r.publisher.PublishTransactionEvent(txCtx,
				entry.ID.String(), entry.AggregateID.String(), entry.EventType, entry.Payload)
			if err != nil {
				r.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Int("retry_count", entry.RetryCount).
					Msg("failed to publish outbox entry")
				r.observer.ObserveWorkerTask(taskOutbox, "error", time.Since(start))
				if err := r.outboxRepo.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				continue
			}
			if err := r.outboxRepo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.observer.ObserveWorkerTask(taskOutbox, "success", time.Since(start))
			published++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("relay outbox: %w", err)
	}
	if published > 0 {
		r.logger.Debug().Int("published", published).Msg("outbox entries relayed")
	}
	return published, nil
}
