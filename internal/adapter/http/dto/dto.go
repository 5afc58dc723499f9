package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

// Amount accepts a JSON string or number and keeps its literal text.
// Parsing and validation happen in the ledger service.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(b)
	}
	return nil
}

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=150,safe_id"`
	Email    string `json:"email" binding:"omitempty,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// AmountRequest is the request body for deposits and withdrawals.
type AmountRequest struct {
	Amount Amount `json:"amount"`
}

// TransferRequest is the request body for transfers. ToUser is a user id or a username.
type TransferRequest struct {
	ToUser string `json:"to_user"`
	Amount Amount `json:"amount"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TransactionResponse is the wire form of a ledger entry.
type TransactionResponse struct {
	ID         string  `json:"id"`
	FromUserID string  `json:"from_user_id"`
	ToUserID   *string `json:"to_user_id,omitempty"`
	Amount     string  `json:"amount"`
	Kind       string  `json:"kind"`
	CreatedAt  string  `json:"created_at"`
	IsFlagged  bool    `json:"is_flagged"`
	IsDeleted  bool    `json:"is_deleted"`
}

// WalletResponse is the response for balance queries.
type WalletResponse struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

// BalanceEntryResponse is one row of the top-balances report.
type BalanceEntryResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

// SummaryResponse is the response for the total balance report.
type SummaryResponse struct {
	TotalBalance string `json:"total_balance"`
}

// FraudScanResponse is the response for a fraud scan.
type FraudScanResponse struct {
	Since        string `json:"since"`
	FlaggedCount int    `json:"flagged_count"`
	Message      string `json:"message"`
}

// NewUserResponse converts a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// NewTransactionResponse converts a domain transaction.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:         t.ID.String(),
		FromUserID: t.FromUserID.String(),
		Amount:     t.Amount.StringFixed(domain.MoneyScale),
		Kind:       string(t.Kind),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339Nano),
		IsFlagged:  t.IsFlagged,
		IsDeleted:  t.IsDeleted,
	}
	if t.ToUserID != nil {
		to := t.ToUserID.String()
		resp.ToUserID = &to
	}
	return resp
}

// NewTransactionList converts a slice of domain transactions.
func NewTransactionList(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

// NewWalletResponse converts a domain wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		UserID:  w.UserID.String(),
		Balance: w.Balance.StringFixed(domain.MoneyScale),
	}
}

// NewBalanceEntries converts the top-balances report.
func NewBalanceEntries(entries []domain.BalanceEntry) []BalanceEntryResponse {
	out := make([]BalanceEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, BalanceEntryResponse{
			UserID:   e.UserID.String(),
			Username: e.Username,
			Balance:  e.Balance.StringFixed(domain.MoneyScale),
		})
	}
	return out
}

// NewFraudScanResponse converts a fraud scan result.
func NewFraudScanResponse(r *ports.FraudScanResult) FraudScanResponse {
	return FraudScanResponse{
		Since:        r.Since.Format(time.RFC3339),
		FlaggedCount: r.FlaggedCount,
		Message:      FraudScanMessage(r.FlaggedCount),
	}
}

// FraudScanMessage is the human-readable scan summary.
func FraudScanMessage(count int) string {
	return fmt.Sprintf("Fraud scan complete. %d suspicious transactions found.", count)
}
