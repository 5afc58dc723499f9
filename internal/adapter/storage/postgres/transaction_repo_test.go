package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransfer(from, to uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   &to,
		Amount:     decimal.RequireFromString("200.00"),
		Kind:       domain.TransactionKindTransfer,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		IsFlagged:  false,
	}
}

func newTestDeposit(userID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:         uuid.New(),
		FromUserID: userID,
		Amount:     decimal.RequireFromString("500.00"),
		Kind:       domain.TransactionKindDeposit,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func txColumns() []string {
	return []string{"id", "from_user_id", "to_user_id", "amount", "kind", "created_at", "is_flagged", "is_deleted"}
}

func txRows(txns ...*domain.Transaction) *pgxmock.Rows {
	rows := pgxmock.NewRows(txColumns())
	for _, t := range txns {
		rows.AddRow(t.ID, t.FromUserID, t.ToUserID, t.Amount, t.Kind, t.CreatedAt, t.IsFlagged, t.IsDeleted)
	}
	return rows
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.FromUserID, txn.ToUserID, txn.Amount, txn.Kind,
			txn.CreatedAt, txn.IsFlagged, txn.IsDeleted).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestDeposit(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.FromUserID, txn.ToUserID, txn.Amount, txn.Kind,
			txn.CreatedAt, txn.IsFlagged, txn.IsDeleted).
		WillReturnError(fmt.Errorf("check constraint violated"))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert transaction")
}

func TestTransactionRepo_CountTransfersSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	since := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions .+ kind = 'transfer' AND created_at >=").
		WithArgs(userID, since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	count, err := repo.CountTransfersSince(context.Background(), dbTx, userID, since)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRows(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, domain.TransactionKindTransfer, result.Kind)
	require.NotNil(t, result.ToUserID)
	assert.Equal(t, *txn.ToUserID, *result.ToUserID)
	assert.True(t, txn.Amount.Equal(result.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(txRows())

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	newer := newTestTransfer(userID, uuid.New())
	older := newTestDeposit(userID)
	older.CreatedAt = newer.CreatedAt.Add(-time.Second)

	mock.ExpectQuery("SELECT .+ FROM transactions\\s+WHERE from_user_id = \\$1 AND is_deleted = FALSE\\s+ORDER BY created_at DESC, id DESC").
		WithArgs(userID).
		WillReturnRows(txRows(newer, older))

	result, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, newer.ID, result[0].ID)
	assert.Equal(t, older.ID, result[1].ID)
	assert.Nil(t, result[1].ToUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListFlagged_IncludesDeleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer(uuid.New(), uuid.New())
	txn.IsFlagged = true
	txn.IsDeleted = true

	mock.ExpectQuery("SELECT .+ FROM transactions\\s+WHERE is_flagged = TRUE\\s+ORDER BY").
		WillReturnRows(txRows(txn))

	result, err := repo.ListFlagged(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].IsDeleted)
	assert.True(t, result[0].IsFlagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListFlagged_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions").WillReturnError(fmt.Errorf("connection refused"))

	_, err = repo.ListFlagged(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "list transactions")
}

func TestTransactionRepo_CountFlaggedSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE is_flagged = TRUE AND created_at >=").
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountFlaggedSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SoftDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions SET is_deleted = TRUE").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.SoftDelete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SoftDelete_Unknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectExec("UPDATE transactions SET is_deleted = TRUE").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.SoftDelete(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
