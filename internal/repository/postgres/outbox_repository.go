package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultOutboxRetention is how long published settlement events are kept.
const DefaultOutboxRetention = 7 * 24 * time.Hour

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status,
		        retry_count, max_retries, created_at, published_at`

// OutboxRepository stores settlement events for one aggregate type. The relay
// only ever sees that type's rows.
type OutboxRepository struct {
	pool          *pgxpool.Pool
	aggregateType string
	retention     time.Duration
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{
		pool:          pool,
		aggregateType: outbox.AggregateTransaction,
		retention:     DefaultOutboxRetention,
	}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert writes a settlement event. Call it inside the transaction that changed
// the transaction's status.
func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if entry.AggregateType != r.aggregateType {
		return fmt.Errorf("insert outbox entry: aggregate type %q, want %q", entry.AggregateType, r.aggregateType)
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, max_retries, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, payload,
		string(entry.Status), entry.RetryCount, entry.MaxRetries, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// GetPending claims up to limit unpublished events, oldest first. Rows claimed by
// another relay are skipped, so run it inside WithTransaction.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		 WHERE status = 'pending' AND aggregate_type = $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`, r.aggregateType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending settlement events: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanOutboxEntry(s scanner) (*outbox.Entry, error) {
	e := &outbox.Entry{}
	var (
		payload []byte
		status  string
	)
	if err := s.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &status,
		&e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.PublishedAt); err != nil {
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}
	e.Status = outbox.Status(status)
	e.Payload = make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
	}
	return e, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = 'published', published_at = $1 WHERE id = $2 AND status = 'pending'`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark settlement event published: %w", err)
	}
	return nil
}

// MarkFailed spends one unit of the entry's retry budget. The entry stays pending
// until the budget is gone.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1,
		        status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END
		 WHERE id = $1 AND status = 'pending'`, id,
	)
	if err != nil {
		return fmt.Errorf("mark settlement event failed: %w", err)
	}
	return nil
}

// Cleanup deletes published events older than the retention window.
func (r *OutboxRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM outbox WHERE aggregate_type = $1 AND status = 'published' AND published_at < $2`,
		r.aggregateType, time.Now().UTC().Add(-r.retention),
	)
	if err != nil {
		return 0, fmt.Errorf("prune published settlement events: %w", err)
	}
	return tag.RowsAffected(), nil
}
