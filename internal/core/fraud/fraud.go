// Package fraud holds the write-time heuristics that decide whether a new
// ledger entry is flagged. All functions are pure.
package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rules parameterises the two heuristics.
//   - R1: a withdrawal strictly above LargeWithdrawalThreshold is flagged.
//   - R2: a transfer is flagged when the source user's transfers inside the
//     trailing BurstWindow, counting the new one, reach BurstThreshold.
type Rules struct {
	LargeWithdrawalThreshold decimal.Decimal
	BurstWindow              time.Duration
	BurstThreshold           int
}

// DefaultRules returns the production thresholds: 1000, 60s, 3.
func DefaultRules() Rules {
	return Rules{
		LargeWithdrawalThreshold: decimal.NewFromInt(1000),
		BurstWindow:              60 * time.Second,
		BurstThreshold:           3,
	}
}

// NewRules parses a threshold string and falls back to defaults for zero values.
func NewRules(threshold string, window time.Duration, burst int) (Rules, error) {
	r := DefaultRules()
	if threshold != "" {
		t, err := decimal.NewFromString(threshold)
		if err != nil {
			return Rules{}, fmt.Errorf("parsing large withdrawal threshold: %w", err)
		}
		if t.IsNegative() {
			return Rules{}, fmt.Errorf("large withdrawal threshold must not be negative: %s", threshold)
		}
		r.LargeWithdrawalThreshold = t
	}
	if window > 0 {
		r.BurstWindow = window
	}
	if burst > 0 {
		r.BurstThreshold = burst
	}
	return r, nil
}

// IsLargeWithdrawal is R1.
func (r Rules) IsLargeWithdrawal(amount decimal.Decimal) bool {
	return amount.GreaterThan(r.LargeWithdrawalThreshold)
}

// WindowStart is the inclusive lower bound of the R2 window ending at now.
func (r Rules) WindowStart(now time.Time) time.Time {
	return now.Add(-r.BurstWindow)
}

// IsTransferBurst is R2. priorInWindow is the number of the source user's
// transfers already persisted with created_at >= WindowStart(now).
func (r Rules) IsTransferBurst(priorInWindow int) bool {
	return priorInWindow+1 >= r.BurstThreshold
}
