package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AlertSubjectLargeWithdrawal = "Suspicious Withdrawal Alert"
	AlertSubjectTransferBurst   = "Suspicious Transfer Activity"
)

// Alert is a fraud notification addressed to the acting user.
type Alert struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Recipient     string    `json:"recipient"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
}

// LargeWithdrawalAlert builds the alert sent after a flagged withdrawal.
func LargeWithdrawalAlert(txID uuid.UUID, recipient string, amount decimal.Decimal) Alert {
	return Alert{
		TransactionID: txID,
		Recipient:     recipient,
		Subject:       AlertSubjectLargeWithdrawal,
		Body:          fmt.Sprintf("A large withdrawal of %s was flagged.", amount.StringFixed(MoneyScale)),
	}
}

// TransferBurstAlert builds the alert sent after a flagged transfer.
func TransferBurstAlert(txID uuid.UUID, recipient string) Alert {
	return Alert{
		TransactionID: txID,
		Recipient:     recipient,
		Subject:       AlertSubjectTransferBurst,
		Body:          "High-frequency transfers detected from your account.",
	}
}
