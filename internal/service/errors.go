package service

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Postgres error codes that mean the transaction lost a lock race and had no effect.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// storeError classifies a ledger store failure. Lock contention becomes a
// retryable SYS_002, everything else SYS_001.
func storeError(op string, err error) *apperror.AppError {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return apperror.ErrLockTimeout(wrapped)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrLockTimeout(wrapped)
	}
	return apperror.ErrDatabaseError(wrapped)
}

// parseAmount accepts a positive decimal with at most two fractional digits
// and at most ten integer digits.
func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if !amount.IsPositive() {
		return decimal.Zero, false
	}
	if !amount.Equal(amount.Truncate(domain.MoneyScale)) {
		return decimal.Zero, false
	}
	if amount.GreaterThanOrEqual(domain.MaxMoney) {
		return decimal.Zero, false
	}
	return amount.Truncate(domain.MoneyScale), true
}
