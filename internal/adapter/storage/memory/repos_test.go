package memory

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitTxn(t *testing.T, s *Store, txn *domain.Transaction) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, NewTransactionRepo(s).Create(context.Background(), tx, txn))
	require.NoError(t, tx.Commit(context.Background()))
}

func TestUserRepo_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	err = NewUserRepo(s).Create(ctx, tx, &domain.User{ID: uuid.New(), Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestUserRepo_Resolve(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := seedUser(t, s, "bob")
	repo := NewUserRepo(s)

	byID, err := repo.Resolve(ctx, u.ID.String())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "bob", byID.Username)

	byName, err := repo.Resolve(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)

	missing, err := repo.Resolve(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missingID, err := repo.Resolve(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missingID)
}

func TestWalletRepo_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	wallets := NewWalletRepo(s)
	u := seedUser(t, s, "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, wallets.UpdateBalance(ctx, tx, u.ID, decimal.NewFromInt(7)))
	require.NoError(t, wallets.Ensure(ctx, tx, u.ID))
	w, err := wallets.GetByUserIDForUpdate(ctx, tx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", w.Balance.String(), "Ensure must not reset an existing wallet")
	require.NoError(t, tx.Commit(ctx))
}

func TestWalletRepo_EnsureUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	err = NewWalletRepo(s).Ensure(ctx, tx, uuid.New())
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestWalletRepo_TopOrdersByBalanceThenUserID(t *testing.T) {
	ctx := context.Background()
	s := New()
	wallets := NewWalletRepo(s)

	users := []*domain.User{seedUser(t, s, "u1"), seedUser(t, s, "u2"), seedUser(t, s, "u3")}
	balances := []string{"10", "20", "20"}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, u := range users {
		require.NoError(t, wallets.UpdateBalance(ctx, tx, u.ID, dec(balances[i])))
	}
	require.NoError(t, tx.Commit(ctx))

	top, err := wallets.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	first, second := users[1], users[2]
	if first.ID.String() > second.ID.String() {
		first, second = second, first
	}
	assert.Equal(t, first.ID, top[0].UserID)
	assert.Equal(t, second.ID, top[1].UserID)
	assert.Equal(t, first.Username, top[0].Username)
}

func TestWalletRepo_TotalEmpty(t *testing.T) {
	total, err := NewWalletRepo(New()).Total(context.Background())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTransactionRepo_CountTransfersSinceIncludesStaged(t *testing.T) {
	ctx := context.Background()
	s := New()
	txns := NewTransactionRepo(s)
	a, b := seedUser(t, s, "a"), seedUser(t, s, "b")
	now := time.Now().UTC()

	commitTxn(t, s, &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, ToUserID: &b.ID, Amount: dec("1"),
		Kind: domain.TransactionKindTransfer, CreatedAt: now.Add(-2 * time.Minute)})
	commitTxn(t, s, &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, ToUserID: &b.ID, Amount: dec("1"),
		Kind: domain.TransactionKindTransfer, CreatedAt: now.Add(-60 * time.Second)})
	commitTxn(t, s, &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, Amount: dec("1"),
		Kind: domain.TransactionKindDeposit, CreatedAt: now})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck
	require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, ToUserID: &b.ID,
		Amount: dec("1"), Kind: domain.TransactionKindTransfer, CreatedAt: now}))

	count, err := txns.CountTransfersSince(ctx, tx, a.ID, now.Add(-60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "window start is inclusive; deposits and old transfers are excluded")
}

func TestTransactionRepo_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	err = NewTransactionRepo(s).Create(ctx, tx, &domain.Transaction{ID: uuid.New(), Kind: domain.TransactionKindTransfer, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrMissingDestination)
}

func TestTransactionRepo_ListingsAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	txns := NewTransactionRepo(s)
	a := seedUser(t, s, "a")
	now := time.Now().UTC()

	older := &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, Amount: dec("1500"), Kind: domain.TransactionKindWithdraw,
		CreatedAt: now.Add(-time.Minute), IsFlagged: true}
	tieFirst := &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, Amount: dec("5"), Kind: domain.TransactionKindDeposit, CreatedAt: now}
	tieSecond := &domain.Transaction{ID: uuid.New(), FromUserID: a.ID, Amount: dec("2000"), Kind: domain.TransactionKindWithdraw,
		CreatedAt: now, IsFlagged: true}
	commitTxn(t, s, older)
	commitTxn(t, s, tieFirst)
	commitTxn(t, s, tieSecond)

	history, err := txns.ListByUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, tieSecond.ID, history[0].ID, "equal timestamps fall back to insertion order, newest first")
	assert.Equal(t, tieFirst.ID, history[1].ID)
	assert.Equal(t, older.ID, history[2].ID)

	ok, err := txns.SoftDelete(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	history, _ = txns.ListByUser(ctx, a.ID)
	assert.Len(t, history, 2)

	flagged, err := txns.ListFlagged(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, older.ID, flagged[1].ID)
	assert.True(t, flagged[1].IsDeleted)

	count, err := txns.CountFlaggedSince(ctx, now.Add(-30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := txns.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	ok, err = txns.SoftDelete(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
