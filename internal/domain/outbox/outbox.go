package outbox

import (
	"time"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/google/uuid"
)

const AggregateTransaction = "transaction"

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    5,
		CreatedAt:     time.Now().UTC(),
	}
}

// SettlementEntry builds the event recorded when a transaction reaches a new status.
// source names the path that observed the outcome (verify, webhook, reconcile).
func SettlementEntry(t *transaction.Transaction, source string) *Entry {
	payload := map[string]any{
		"reference": t.Reference,
		"email":     t.Email,
		"amount":    t.Amount,
		"status":    string(t.Status),
		"source":    source,
	}
	if t.PaymentMethod != nil {
		payload["payment_method"] = *t.PaymentMethod
	}
	if t.ProviderFee != nil {
		payload["provider_fee"] = *t.ProviderFee
	}
	return NewEntry(AggregateTransaction, t.ID, "transaction."+string(t.Status), payload)
}
