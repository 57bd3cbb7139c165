package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, reference, email, amount::text, metadata, status,
		        payment_method, card_type, last4, provider_fee::text, created_at, updated_at`

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO transactions
		 (id, reference, email, amount, metadata, status,
		  payment_method, card_type, last4, provider_fee, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Reference, t.Email, formatNumeric(t.Amount), metadata, string(t.Status),
		t.PaymentMethod, t.CardType, t.Last4, formatNullableNumeric(t.ProviderFee), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByReference retrieves a transaction by reference.
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference))
}

// Lock retrieves a transaction with SELECT FOR UPDATE. Must run inside WithTransaction.
func (r *TransactionRepository) Lock(ctx context.Context, reference string) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference))
}

// Update writes the mutable columns. Reference, email, amount, metadata and
// created_at are never touched.
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions SET
		  status=$1, payment_method=$2, card_type=$3, last4=$4, provider_fee=$5, updated_at=$6
		 WHERE reference=$7`,
		string(t.Status), t.PaymentMethod, t.CardType, t.Last4, formatNullableNumeric(t.ProviderFee),
		t.UpdatedAt, t.Reference,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

// List returns one page of transactions, newest first, and the total matching count.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	f = f.Normalize()

	where := ""
	args := []any{}
	if f.Email != "" {
		where = " WHERE email = $1"
		args = append(args, f.Email)
	}

	var total int
	if err := r.db(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	argIdx := len(args) + 1
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []*transaction.Transaction{}
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, total, nil
}

// ListPending returns pending transactions created before createdBefore. Unchecked
// rows come first, then the least recently checked, so records the provider cannot
// resolve do not hold up newer ones.
func (r *TransactionRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY checked_at ASC NULLS FIRST, created_at ASC
		 LIMIT $2`, createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// MarkChecked stamps checked_at on a pending transaction. Settled rows are left alone.
func (r *TransactionRepository) MarkChecked(ctx context.Context, reference string, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE transactions SET checked_at = $1 WHERE reference = $2 AND status = 'pending'`,
		at, reference,
	)
	if err != nil {
		return fmt.Errorf("mark transaction checked: %w", err)
	}
	return nil
}

func (r *TransactionRepository) scanTransaction(s scanner) (*transaction.Transaction, error) {
	t := &transaction.Transaction{}
	var (
		amountStr string
		feeStr    *string
		status    string
		metadata  []byte
	)
	err := s.Scan(
		&t.ID, &t.Reference, &t.Email, &amountStr, &metadata, &status,
		&t.PaymentMethod, &t.CardType, &t.Last4, &feeStr, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	if t.Amount, err = parseNumeric(amountStr); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.ProviderFee, err = parseNullableNumeric(feeStr); err != nil {
		return nil, fmt.Errorf("parse provider fee: %w", err)
	}
	t.Status = transaction.Status(status)
	t.Metadata = make(map[string]any)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
