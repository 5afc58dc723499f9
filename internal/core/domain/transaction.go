package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of balance movement.
type TransactionKind string

const (
	TransactionKindDeposit  TransactionKind = "deposit"
	TransactionKindWithdraw TransactionKind = "withdraw"
	TransactionKindTransfer TransactionKind = "transfer"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdraw, TransactionKindTransfer:
		return true
	}
	return false
}

var (
	ErrNonPositiveAmount  = errors.New("transaction amount must be positive")
	ErrUnknownKind        = errors.New("unknown transaction kind")
	ErrMissingDestination = errors.New("transfer requires a destination user")
	ErrUnexpectedDest     = errors.New("only transfers carry a destination user")
)

// Transaction is an immutable ledger entry. Only IsDeleted may change after creation.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	FromUserID uuid.UUID       `json:"from_user_id"`
	ToUserID   *uuid.UUID      `json:"to_user_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       TransactionKind `json:"kind"`
	CreatedAt  time.Time       `json:"created_at"`
	IsFlagged  bool            `json:"is_flagged"`
	IsDeleted  bool            `json:"is_deleted"`
}

// Validate checks the structural invariants of a transaction.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !t.Kind.Valid() {
		return ErrUnknownKind
	}
	if t.Kind == TransactionKindTransfer && t.ToUserID == nil {
		return ErrMissingDestination
	}
	if t.Kind != TransactionKindTransfer && t.ToUserID != nil {
		return ErrUnexpectedDest
	}
	return nil
}

// SignedAmountFor returns the effect of t on userID's balance.
// A self-transfer nets to zero.
func (t *Transaction) SignedAmountFor(userID uuid.UUID) decimal.Decimal {
	delta := decimal.Zero
	switch t.Kind {
	case TransactionKindDeposit:
		if t.FromUserID == userID {
			delta = delta.Add(t.Amount)
		}
	case TransactionKindWithdraw:
		if t.FromUserID == userID {
			delta = delta.Sub(t.Amount)
		}
	case TransactionKindTransfer:
		if t.FromUserID == userID {
			delta = delta.Sub(t.Amount)
		}
		if t.ToUserID != nil && *t.ToUserID == userID {
			delta = delta.Add(t.Amount)
		}
	}
	return delta
}
