package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, from_user_id, to_user_id, amount, kind, created_at, is_flagged, is_deleted`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.FromUserID, t.ToUserID, t.Amount, t.Kind,
		t.CreatedAt, t.IsFlagged, t.IsDeleted,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CountTransfersSince counts the user's outgoing transfers created at or after since.
func (r *TransactionRepo) CountTransfersSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM transactions
		WHERE from_user_id = $1 AND kind = 'transfer' AND created_at >= $2`

	var count int
	if err := tx.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent transfers: %w", err)
	}
	return count, nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// ListByUser returns the user's non-deleted outgoing entries, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE from_user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC`

	return r.list(ctx, query, userID)
}

// ListFlagged returns all flagged entries, soft-deleted ones included, newest first.
func (r *TransactionRepo) ListFlagged(ctx context.Context) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE is_flagged = TRUE
		ORDER BY created_at DESC, id DESC`

	return r.list(ctx, query)
}

// CountFlaggedSince counts flagged entries created at or after since.
func (r *TransactionRepo) CountFlaggedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE is_flagged = TRUE AND created_at >= $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count flagged transactions: %w", err)
	}
	return count, nil
}

// SoftDelete marks an entry as deleted. It returns false when no entry has that id.
func (r *TransactionRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET is_deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TransactionRepo) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Kind,
		&t.CreatedAt, &t.IsFlagged, &t.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
