package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Ensure creates an empty wallet for the user if it does not exist yet.
// Concurrent callers converge on the single row keyed by user_id.
func (r *WalletRepo) Ensure(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW()) ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// GetByUserIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`

	w := &domain.Wallet{}
	err := tx.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalance writes a wallet's new balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, balance, userID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	return nil
}

// Total sums every wallet balance. It is zero when there are no wallets.
func (r *WalletRepo) Total(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM wallets`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum wallet balances: %w", err)
	}
	return total, nil
}

// Top returns the richest wallets, ties broken by user id ascending.
func (r *WalletRepo) Top(ctx context.Context, limit int) ([]domain.BalanceEntry, error) {
	query := `SELECT w.user_id, u.username, w.balance
		FROM wallets w JOIN users u ON u.id = w.user_id
		ORDER BY w.balance DESC, w.user_id ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list top wallets: %w", err)
	}
	defer rows.Close()

	var entries []domain.BalanceEntry
	for rows.Next() {
		var e domain.BalanceEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Balance); err != nil {
			return nil, fmt.Errorf("scan top wallet row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top wallet rows: %w", err)
	}
	return entries, nil
}
