package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/fraud"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentAlert struct {
	recipient, subject, body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (n *recordingNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentAlert{recipient, subject, body})
	return nil
}

func (n *recordingNotifier) alerts() []sentAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentAlert(nil), n.sent...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memoryLedger wires the real services over the in-process store.
type memoryLedger struct {
	auth      *AuthServiceImpl
	ledger    *LedgerServiceImpl
	reporting ports.ReportingService
	notifier  *recordingNotifier
	clock     *manualClock
}

func newMemoryLedger(t *testing.T) *memoryLedger {
	t.Helper()
	store := memory.New()
	users := memory.NewUserRepo(store)
	wallets := memory.NewWalletRepo(store)
	txns := memory.NewTransactionRepo(store)

	m := &memoryLedger{
		notifier: &recordingNotifier{},
		clock:    &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	m.auth = NewAuthService(
		users, store,
		NewArgon2HashServiceWithParams(cheapArgon2),
		NewJWTTokenService("memory-ledger-secret", time.Hour, "test"),
	)
	m.ledger = NewLedgerService(wallets, txns, users, store, m.notifier, fraud.DefaultRules(), zerolog.Nop())
	m.ledger.now = m.clock.Now
	reporting := NewReportingService(txns, wallets, zerolog.Nop()).(*reportingService)
	reporting.now = m.clock.Now
	m.reporting = reporting
	t.Cleanup(m.ledger.Wait)
	return m
}

func (m *memoryLedger) register(t *testing.T, username string) uuid.UUID {
	t.Helper()
	u, err := m.auth.Register(context.Background(), ports.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return u.ID
}

func (m *memoryLedger) deposit(t *testing.T, userID uuid.UUID, amount string) {
	t.Helper()
	_, err := m.ledger.Deposit(context.Background(), ports.DepositRequest{UserID: userID, Amount: amount})
	require.NoError(t, err)
}

func (m *memoryLedger) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := m.ledger.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func TestMemoryLedger_DepositTransferWithdrawScenario(t *testing.T) {
	m := newMemoryLedger(t)
	ctx := context.Background()
	alice := m.register(t, "alice")
	bob := m.register(t, "bob")

	m.deposit(t, alice, "500")
	_, err := m.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, To: "bob", Amount: "200"})
	require.NoError(t, err)

	_, err = m.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: alice, Amount: "1500"})
	assertAppError(t, err, apperror.CodeInvalidWithdrawal)

	assert.True(t, m.balance(t, alice).Equal(decimal.NewFromInt(300)))
	assert.True(t, m.balance(t, bob).Equal(decimal.NewFromInt(200)))

	history, err := m.reporting.ListTransactionHistory(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionKindTransfer, history[0].Kind)
	assert.Equal(t, domain.TransactionKindDeposit, history[1].Kind)

	total, err := m.reporting.TotalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(500)))

	top, err := m.reporting.TopBalances(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].Username)
}

func TestMemoryLedger_TransferByUserID(t *testing.T) {
	m := newMemoryLedger(t)
	alice := m.register(t, "alice")
	bob := m.register(t, "bob")
	m.deposit(t, alice, "10")

	txn, err := m.ledger.Transfer(context.Background(), ports.TransferRequest{
		FromUserID: alice,
		To:         bob.String(),
		Amount:     "10",
	})
	require.NoError(t, err)
	require.NotNil(t, txn.ToUserID)
	assert.Equal(t, bob, *txn.ToUserID)
	assert.True(t, m.balance(t, alice).IsZero())
}

func TestMemoryLedger_ConcurrentDoubleSpend(t *testing.T) {
	m := newMemoryLedger(t)
	ctx := context.Background()
	alice := m.register(t, "alice")
	m.register(t, "bob")
	m.register(t, "carol")
	m.deposit(t, alice, "100")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []string{"bob", "carol"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, To: to, Amount: "100"})
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, apperror.Is(err, apperror.CodeInsufficientBalance), "unexpected error: %v", err)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one transfer must lose the race")
	assert.True(t, m.balance(t, alice).IsZero())
}

func TestMemoryLedger_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	m := newMemoryLedger(t)
	alice := m.register(t, "alice")
	m.deposit(t, alice, "100")

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ledger.Withdraw(context.Background(), ports.WithdrawRequest{UserID: alice, Amount: "10"})
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.Is(err, apperror.CodeInvalidWithdrawal):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(10), rejected.Load())
	assert.True(t, m.balance(t, alice).IsZero())
}

func TestMemoryLedger_ConservationUnderRandomLoad(t *testing.T) {
	m := newMemoryLedger(t)
	ctx := context.Background()

	const users = 8
	ids := make([]uuid.UUID, users)
	for i := range ids {
		ids[i] = m.register(t, fmt.Sprintf("user%d", i))
		m.deposit(t, ids[i], "1000")
	}

	var (
		mu        sync.Mutex
		withdrawn = decimal.Zero
		wg        sync.WaitGroup
	)
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(g), 42))
			for range 50 {
				from := ids[rng.IntN(users)]
				amount := fmt.Sprintf("%d.%02d", rng.IntN(300), rng.IntN(100))

				if rng.IntN(4) == 0 {
					_, err := m.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: from, Amount: amount})
					if err == nil {
						mu.Lock()
						withdrawn = withdrawn.Add(decimal.RequireFromString(amount))
						mu.Unlock()
					}
					continue
				}
				to := ids[rng.IntN(users)]
				_, err := m.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: from, To: to.String(), Amount: amount})
				if err != nil && !apperror.Is(err, apperror.CodeInsufficientBalance) &&
					!apperror.Is(err, apperror.CodeInvalidTransferDetails) {
					t.Errorf("unexpected transfer error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	sum := decimal.Zero
	for _, id := range ids {
		b := m.balance(t, id)
		assert.False(t, b.IsNegative(), "balance of %s went negative: %s", id, b)
		sum = sum.Add(b)
	}
	expected := decimal.NewFromInt(users * 1000).Sub(withdrawn)
	assert.True(t, sum.Equal(expected), "sum %s != deposits - withdrawals %s", sum, expected)

	total, err := m.reporting.TotalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(expected))
}

func TestMemoryLedger_TransferBurstFlagging(t *testing.T) {
	m := newMemoryLedger(t)
	ctx := context.Background()
	alice := m.register(t, "alice")
	m.register(t, "bob")
	m.deposit(t, alice, "100")

	transfer := func() *domain.Transaction {
		txn, err := m.ledger.Transfer(ctx, ports.TransferRequest{FromUserID: alice, To: "bob", Amount: "1"})
		require.NoError(t, err)
		return txn
	}

	assert.False(t, transfer().IsFlagged)
	m.clock.Advance(10 * time.Second)
	assert.False(t, transfer().IsFlagged)
	m.clock.Advance(10 * time.Second)
	assert.True(t, transfer().IsFlagged, "third transfer inside the window is flagged")

	// Transfers 1 and 2 leave the window, transfer 3 is still inside it.
	m.clock.Advance(51 * time.Second)
	assert.False(t, transfer().IsFlagged, "only one prior transfer remains in the window")
	m.clock.Advance(time.Second)
	assert.True(t, transfer().IsFlagged, "transfers 3, 4 and 5 form a new burst")

	m.ledger.Wait()
	alerts := m.notifier.alerts()
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, "alice@example.com", a.recipient)
		assert.Equal(t, domain.AlertSubjectTransferBurst, a.subject)
	}
}

func TestMemoryLedger_FlaggedWithdrawalAndSoftDelete(t *testing.T) {
	m := newMemoryLedger(t)
	ctx := context.Background()
	alice := m.register(t, "alice")
	m.deposit(t, alice, "5000")

	txn, err := m.ledger.Withdraw(ctx, ports.WithdrawRequest{UserID: alice, Amount: "1500"})
	require.NoError(t, err)
	assert.True(t, txn.IsFlagged)

	m.ledger.Wait()
	alerts := m.notifier.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSubjectLargeWithdrawal, alerts[0].subject)
	assert.Contains(t, alerts[0].body, "1500.00")

	scan, err := m.reporting.FraudScan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, scan.FlaggedCount)

	require.NoError(t, m.reporting.SoftDeleteTransaction(ctx, txn.ID))

	history, err := m.reporting.ListTransactionHistory(ctx, alice)
	require.NoError(t, err)
	for _, h := range history {
		assert.NotEqual(t, txn.ID, h.ID, "soft-deleted entry must leave the history")
	}

	flagged, err := m.reporting.ListFlagged(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, txn.ID, flagged[0].ID)
	assert.True(t, flagged[0].IsDeleted)

	assert.True(t, m.balance(t, alice).Equal(decimal.NewFromInt(3500)), "soft delete never touches balances")

	err = m.reporting.SoftDeleteTransaction(ctx, uuid.New())
	assertAppError(t, err, apperror.CodeNotFound)
}
