package transaction

import (
	"context"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps the offset well inside int range for any limit.
	MaxPage = 1_000_000
)

// Repository defines the interface for transaction persistence
type Repository interface {
	// Create inserts a new transaction. Returns ErrDuplicateReference when the
	// reference is already taken.
	Create(ctx context.Context, tx *Transaction) error

	// GetByReference retrieves a transaction by reference
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// Lock retrieves a transaction and holds a write lock on it until the
	// surrounding database transaction ends
	Lock(ctx context.Context, reference string) (*Transaction, error)

	// Update persists status and the success-only fields
	Update(ctx context.Context, tx *Transaction) error

	// List returns one page of transactions, newest first, and the total count
	List(ctx context.Context, filter ListFilter) ([]*Transaction, int, error)

	// ListPending returns pending transactions created before the given time.
	// Records never checked come first, then the least recently checked, then
	// the oldest.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*Transaction, error)

	// MarkChecked records that a pending transaction was re-checked with the
	// provider at the given time without reaching an outcome
	MarkChecked(ctx context.Context, reference string, at time.Time) error
}

// ListFilter defines filters for listing transactions
type ListFilter struct {
	Email string
	Page  int
	Limit int
}

// Normalize replaces values below 1 with the defaults and clamps values
// above MaxPage and MaxLimit.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset returns the number of rows to skip for the filter's page.
func (f ListFilter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.Limit
}

// TotalPages returns ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit < 1 {
		limit = DefaultLimit
	}
	return (total + limit - 1) / limit
}
