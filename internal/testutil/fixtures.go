package testutil

import (
	"maps"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/google/uuid"
)

func NewTestTransaction(reference, email string, amount float64) *transaction.Transaction {
	now := time.Now().UTC()
	return &transaction.Transaction{
		ID:        uuid.New(),
		Reference: reference,
		Email:     email,
		Amount:    amount,
		Metadata:  make(map[string]any),
		Status:    transaction.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewSuccessfulTransaction(reference, email string, amount float64) *transaction.Transaction {
	tx := NewTestTransaction(reference, email, amount)
	tx.Status = transaction.StatusSuccess
	tx.PaymentMethod = StringPtr("card")
	tx.CardType = StringPtr("visa")
	tx.Last4 = StringPtr("4081")
	fee := transaction.ProviderFee(amount)
	tx.ProviderFee = &fee
	return tx
}

// CloneTransaction returns a deep copy of tx.
func CloneTransaction(tx *transaction.Transaction) *transaction.Transaction {
	if tx == nil {
		return nil
	}
	c := *tx
	c.Metadata = maps.Clone(tx.Metadata)
	c.PaymentMethod = clonePtr(tx.PaymentMethod)
	c.CardType = clonePtr(tx.CardType)
	c.Last4 = clonePtr(tx.Last4)
	c.ProviderFee = clonePtr(tx.ProviderFee)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func StringPtr(s string) *string {
	return &s
}
