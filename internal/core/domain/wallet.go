package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// MaxMoney is the exclusive upper bound of any amount or balance (10 integer digits).
var MaxMoney = decimal.New(1, 10)

// Wallet holds a user's balance. It is keyed by the owning user.
type Wallet struct {
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanDebit reports whether the wallet holds at least amount.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// BalanceEntry is one row of the top-balances report.
type BalanceEntry struct {
	UserID   uuid.UUID       `json:"user_id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}
