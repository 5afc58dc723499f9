package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserDirectory resolves account holders. Lookups return nil, nil when the user does not exist.
type UserDirectory interface {
	// Resolve looks an identifier up as a user id first, then as a username.
	Resolve(ctx context.Context, identifier string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UserDirectory
	// Create inserts the user and its zero-balance wallet in tx.
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Ensure creates an empty wallet for userID if none exists. It is idempotent.
	Ensure(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error
	// Reporting queries
	Total(ctx context.Context) (decimal.Decimal, error)
	Top(ctx context.Context, limit int) ([]domain.BalanceEntry, error)
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// CountTransfersSince counts userID's outgoing transfers with created_at >= since,
	// soft-deleted ones included. It runs in tx so it observes the caller's locks.
	CountTransfersSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// ListByUser returns the non-deleted entries userID originated, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	// ListFlagged returns every flagged entry, soft-deleted ones included, newest first.
	ListFlagged(ctx context.Context) ([]domain.Transaction, error)
	CountFlaggedSince(ctx context.Context, since time.Time) (int, error)
	// SoftDelete marks the entry deleted. It reports false when id is unknown.
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
