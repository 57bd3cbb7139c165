package transaction

import (
	"math"
	"strings"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// MaxAmount is the largest chargeable amount in major units.
const MaxAmount = 1e12

// Status represents the transaction status in the state machine
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Transaction is a single payment attempt with the provider.
// Reference, Email, Amount, Metadata and CreatedAt never change after New.
type Transaction struct {
	ID            uuid.UUID
	Reference     string
	Email         string
	Amount        float64 // major currency units
	Metadata      map[string]any
	Status        Status
	PaymentMethod *string
	CardType      *string
	Last4         *string
	ProviderFee   *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SuccessDetails carries the fields recorded when a charge succeeds.
// Empty strings are stored as absent.
type SuccessDetails struct {
	Channel     string
	CardType    string
	Last4       string
	ProviderFee float64
}

// New creates a pending transaction
func New(reference, email string, amount float64, metadata map[string]any) (*Transaction, error) {
	email = strings.TrimSpace(email)
	if reference == "" {
		return nil, errors.NewValidationError("reference", "is required")
	}
	if email == "" {
		return nil, errors.NewValidationError("email", "is required")
	}
	amount, err := quantize(amount)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:        uuid.New(),
		Reference: reference,
		Email:     email,
		Amount:    amount,
		Metadata:  metadata,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// quantize checks that amount is a whole number of minor units within range and
// returns it rounded to exactly that value, so the store, the provider and the fee
// schedule all see the same figure.
func quantize(amount float64) (float64, error) {
	if math.IsNaN(amount) || amount <= 0 {
		return 0, errors.NewValidationError("amount", "must be greater than 0")
	}
	if amount > MaxAmount {
		return 0, errors.NewValidationError("amount", "exceeds the maximum allowed")
	}
	minor := math.Round(amount * 100)
	if math.Abs(amount*100-minor) > 1e-6 {
		return 0, errors.NewValidationError("amount", "must have at most 2 decimal places")
	}
	if minor < 1 {
		return 0, errors.NewValidationError("amount", "must be at least 0.01")
	}
	return minor / 100, nil
}

// CanTransitionTo checks if the transaction can move to the given status.
// Success is absorbing. A failed transaction may still be confirmed as
// successful when the provider later reports the charge.
func (t *Transaction) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {StatusSuccess, StatusFailed},
		StatusFailed:  {StatusSuccess},
		StatusSuccess: {},
	}

	for _, allowed := range transitions[t.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

func (t *Transaction) transitionTo(newStatus Status) error {
	if !t.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSuccess transitions the transaction to success and records the charge details
func (t *Transaction) MarkSuccess(d SuccessDetails) error {
	if err := t.transitionTo(StatusSuccess); err != nil {
		return err
	}
	fee := d.ProviderFee
	t.PaymentMethod = optional(d.Channel)
	t.CardType = optional(d.CardType)
	t.Last4 = optional(d.Last4)
	t.ProviderFee = &fee
	return nil
}

// MarkFailed transitions the transaction to failed
func (t *Transaction) MarkFailed() error {
	return t.transitionTo(StatusFailed)
}

// IsSettled reports whether the provider has confirmed the charge.
func (t *Transaction) IsSettled() bool {
	return t.Status == StatusSuccess
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
