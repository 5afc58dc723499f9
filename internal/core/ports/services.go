package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, isAdmin bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// IdempotencyStore keeps HTTP outcomes keyed by Idempotency-Key.
type IdempotencyStore interface {
	// Reserve marks key as in progress. It returns false if key is already present.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns the stored response, or inProgress=true while the first request runs.
	// Both are zero when the key is unknown.
	Get(ctx context.Context, key string) (resp *domain.IdempotentResponse, inProgress bool, err error)
	Save(ctx context.Context, key string, resp *domain.IdempotentResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Notifier delivers alerts. Callers treat every error as best-effort.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// --- Service Ports (Business Logic) ---

// LedgerService defines the balance mutation engine.
type LedgerService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}

// DepositRequest holds input for a deposit. Amount is parsed by the service.
type DepositRequest struct {
	UserID uuid.UUID
	Amount string
}

// WithdrawRequest holds input for a withdrawal.
type WithdrawRequest struct {
	UserID uuid.UUID
	Amount string
}

// TransferRequest holds input for a transfer. To is a user id or a username.
type TransferRequest struct {
	FromUserID uuid.UUID
	To         string
	Amount     string
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// ReportingService defines the read-only query layer.
type ReportingService interface {
	ListTransactionHistory(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	ListFlagged(ctx context.Context) ([]domain.Transaction, error)
	TotalBalance(ctx context.Context) (decimal.Decimal, error)
	TopBalances(ctx context.Context, n int) ([]domain.BalanceEntry, error)
	FraudScan(ctx context.Context, window time.Duration) (*FraudScanResult, error)
	SoftDeleteTransaction(ctx context.Context, id uuid.UUID) error
}

// FraudScanResult summarises flagged entries created within a trailing window.
type FraudScanResult struct {
	Since        time.Time `json:"since"`
	FlaggedCount int       `json:"flagged_count"`
}
