package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultTopBalances is the size of the top-balances report when none is given.
const DefaultTopBalances = 5

// DefaultScanWindow is the trailing window of a fraud scan when none is given.
const DefaultScanWindow = 24 * time.Hour

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	log        zerolog.Logger
	now        func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	log zerolog.Logger,
) ports.ReportingService {
	return &reportingService{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		log:        log,
		now:        time.Now,
	}
}

// ListTransactionHistory returns the user's non-deleted transactions, newest first.
func (s *reportingService) ListTransactionHistory(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list history", err)
	}
	return nonNil(txns), nil
}

// ListFlagged returns every flagged transaction, soft-deleted ones included.
func (s *reportingService) ListFlagged(ctx context.Context) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListFlagged(ctx)
	if err != nil {
		return nil, storeError("list flagged", err)
	}
	return nonNil(txns), nil
}

// TotalBalance sums all wallet balances.
func (s *reportingService) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.walletRepo.Total(ctx)
	if err != nil {
		return decimal.Zero, storeError("total balance", err)
	}
	return total, nil
}

// TopBalances returns the n richest wallets. n <= 0 means DefaultTopBalances.
func (s *reportingService) TopBalances(ctx context.Context, n int) ([]domain.BalanceEntry, error) {
	if n <= 0 {
		n = DefaultTopBalances
	}
	entries, err := s.walletRepo.Top(ctx, n)
	if err != nil {
		return nil, storeError("top balances", err)
	}
	if entries == nil {
		entries = []domain.BalanceEntry{}
	}
	return entries, nil
}

// FraudScan counts flagged transactions created within the trailing window.
func (s *reportingService) FraudScan(ctx context.Context, window time.Duration) (*ports.FraudScanResult, error) {
	if window <= 0 {
		window = DefaultScanWindow
	}
	since := s.now().UTC().Add(-window)

	count, err := s.txRepo.CountFlaggedSince(ctx, since)
	if err != nil {
		return nil, storeError("count flagged", err)
	}

	s.log.Info().
		Time("since", since).
		Int("flagged", count).
		Msgf("Fraud scan complete. %d suspicious transactions found.", count)

	return &ports.FraudScanResult{Since: since, FlaggedCount: count}, nil
}

// SoftDeleteTransaction hides a transaction from history. Balances are not touched.
func (s *reportingService) SoftDeleteTransaction(ctx context.Context, id uuid.UUID) error {
	found, err := s.txRepo.SoftDelete(ctx, id)
	if err != nil {
		return storeError("soft delete", err)
	}
	if !found {
		return apperror.ErrNotFound("Transaction")
	}

	s.log.Info().Str("tx_id", id.String()).Msg("transaction soft-deleted")
	return nil
}

func nonNil(txns []domain.Transaction) []domain.Transaction {
	if txns == nil {
		return []domain.Transaction{}
	}
	return txns
}
