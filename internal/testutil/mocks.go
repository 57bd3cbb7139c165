package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/outbox"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/google/uuid"
)

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory implementation of transaction.Repository.
// Stored records are copied on the way in and out, so callers never share state
// with the store.
type MockTransactionRepository struct {
	mu           sync.Mutex
	transactions map[string]*transaction.Transaction
	checked      map[string]time.Time

	CreateFunc         func(ctx context.Context, tx *transaction.Transaction) error
	GetByReferenceFunc func(ctx context.Context, reference string) (*transaction.Transaction, error)
	LockFunc           func(ctx context.Context, reference string) (*transaction.Transaction, error)
	UpdateFunc         func(ctx context.Context, tx *transaction.Transaction) error
	ListFunc           func(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, int, error)
	ListPendingFunc    func(ctx context.Context, createdBefore time.Time, limit int) ([]*transaction.Transaction, error)
	MarkCheckedFunc    func(ctx context.Context, reference string, at time.Time) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*transaction.Transaction),
		checked:      make(map[string]time.Time),
	}
}

// AddTransaction pre-populates the mock with a transaction.
func (m *MockTransactionRepository) AddTransaction(tx *transaction.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.Reference] = CloneTransaction(tx)
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// Get returns a copy of the stored transaction, or nil (test helper, no context needed).
func (m *MockTransactionRepository) Get(reference string) *transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok {
		return nil
	}
	return CloneTransaction(tx)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.Reference]; ok {
		return domainErrors.ErrDuplicateReference
	}
	m.transactions[tx.Reference] = CloneTransaction(tx)
	return nil
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, reference)
	}
	return m.find(reference)
}

func (m *MockTransactionRepository) Lock(ctx context.Context, reference string) (*transaction.Transaction, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, reference)
	}
	return m.find(reference)
}

func (m *MockTransactionRepository) find(reference string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	return CloneTransaction(tx), nil
}

// Update copies only the mutable fields onto the stored record.
func (m *MockTransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.transactions[tx.Reference]
	if !ok {
		return domainErrors.ErrTransactionNotFound
	}
	src := CloneTransaction(tx)
	stored.Status = src.Status
	stored.PaymentMethod = src.PaymentMethod
	stored.CardType = src.CardType
	stored.Last4 = src.Last4
	stored.ProviderFee = src.ProviderFee
	stored.UpdatedAt = src.UpdatedAt
	return nil
}

func (m *MockTransactionRepository) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	filter = filter.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*transaction.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		if filter.Email != "" && tx.Email != filter.Email {
			continue
		}
		all = append(all, tx)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := filter.Offset()
	if start >= total {
		return []*transaction.Transaction{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	page := make([]*transaction.Transaction, 0, end-start)
	for _, tx := range all[start:end] {
		page = append(page, CloneTransaction(tx))
	}
	return page, total, nil
}

func (m *MockTransactionRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*transaction.Transaction, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, createdBefore, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*transaction.Transaction
	for _, tx := range m.transactions {
		if tx.Status == transaction.StatusPending && tx.CreatedAt.Before(createdBefore) {
			result = append(result, CloneTransaction(tx))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ci, iChecked := m.checked[result[i].Reference]
		cj, jChecked := m.checked[result[j].Reference]
		switch {
		case iChecked != jChecked:
			return !iChecked
		case iChecked && !ci.Equal(cj):
			return ci.Before(cj)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTransactionRepository) MarkChecked(ctx context.Context, reference string, at time.Time) error {
	if m.MarkCheckedFunc != nil {
		return m.MarkCheckedFunc(ctx, reference, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.transactions[reference]; ok && tx.Status == transaction.StatusPending {
		m.checked[reference] = at
	}
	return nil
}

// CheckedAt returns when MarkChecked last stamped the reference.
func (m *MockTransactionRepository) CheckedAt(reference string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.checked[reference]
	return at, ok
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
// Calls are serialized, standing in for the row lock a real database holds.
type MockTransactionManager struct {
	mu sync.Mutex

	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository that
// keeps every inserted entry.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// Entries returns the inserted entries in insertion order.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending {
			pending = append(pending, e)
			if limit > 0 && len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			now := time.Now().UTC()
			e.Status = outbox.StatusPublished
			e.PublishedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}
