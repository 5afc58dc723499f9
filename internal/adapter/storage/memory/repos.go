package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Users ---

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a UserRepo over s.
func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{store: s}
}

// Create stages the user and an empty wallet.
func (r *UserRepo) Create(_ context.Context, tx pgx.Tx, u *domain.User) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, taken := r.store.usernames[u.Username]
	r.store.mu.RUnlock()
	for _, staged := range t.users {
		if staged.Username == u.Username {
			taken = true
		}
	}
	if taken {
		return fmt.Errorf("insert user: %w", ErrDuplicateUsername)
	}

	t.users = append(t.users, *u)
	t.wallets[u.ID] = domain.Wallet{
		UserID:    u.ID,
		Balance:   decimal.Zero,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.CreatedAt,
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.store.mu.RLock()
	id, ok := r.store.usernames[username]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Resolve looks identifier up as a user id, then as a username.
func (r *UserRepo) Resolve(ctx context.Context, identifier string) (*domain.User, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		if u, _ := r.GetByID(ctx, id); u != nil {
			return u, nil
		}
	}
	return r.GetByUsername(ctx, identifier)
}

// --- Wallets ---

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a WalletRepo over s.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{store: s}
}

// Ensure stages an empty wallet if the user has none.
func (r *WalletRepo) Ensure(_ context.Context, tx pgx.Tx, userID uuid.UUID) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.wallet(userID); ok {
		return nil
	}
	if !t.userExists(userID) {
		return fmt.Errorf("ensure wallet: %w", ErrUnknownUser)
	}
	now := time.Now().UTC()
	t.wallets[userID] = domain.Wallet{UserID: userID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	return nil
}

// GetByUserIDForUpdate reads the wallet inside tx. The writer slot held by tx is the lock.
func (r *WalletRepo) GetByUserIDForUpdate(_ context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	w, ok := t.wallet(userID)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// UpdateBalance stages a new balance.
func (r *WalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	w, ok := t.wallet(userID)
	if !ok {
		return fmt.Errorf("wallet not found: %s", userID)
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	t.wallets[userID] = w
	return nil
}

// Total sums committed balances.
func (r *WalletRepo) Total(_ context.Context) (decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	total := decimal.Zero
	for _, w := range r.store.wallets {
		total = total.Add(w.Balance)
	}
	return total, nil
}

// Top returns the richest wallets, ties broken by user id ascending.
func (r *WalletRepo) Top(_ context.Context, limit int) ([]domain.BalanceEntry, error) {
	r.store.mu.RLock()
	entries := make([]domain.BalanceEntry, 0, len(r.store.wallets))
	for id, w := range r.store.wallets {
		entries = append(entries, domain.BalanceEntry{
			UserID:   id,
			Username: r.store.users[id].Username,
			Balance:  w.Balance,
		})
	}
	r.store.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Balance.Cmp(entries[j].Balance); c != 0 {
			return c > 0
		}
		return bytes.Compare(entries[i].UserID[:], entries[j].UserID[:]) < 0
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// --- Transactions ---

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a TransactionRepo over s.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{store: s}
}

// Create stages a ledger entry.
func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.txns = append(t.txns, *txn)
	return nil
}

// CountTransfersSince counts committed and staged outgoing transfers at or after since.
func (r *TransactionRepo) CountTransfersSince(_ context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}
	match := func(txn *domain.Transaction) bool {
		return txn.FromUserID == userID &&
			txn.Kind == domain.TransactionKindTransfer &&
			!txn.CreatedAt.Before(since)
	}

	count := 0
	for i := range t.txns {
		if match(&t.txns[i]) {
			count++
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, rec := range r.store.txns {
		if match(&rec.tx) {
			count++
		}
	}
	return count, nil
}

// GetByID fetches a committed entry.
func (r *TransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.txByID[id]
	if !ok {
		return nil, nil
	}
	txn := rec.tx
	return &txn, nil
}

// ListByUser returns the user's non-deleted outgoing entries, newest first.
func (r *TransactionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	return r.list(func(txn *domain.Transaction) bool {
		return txn.FromUserID == userID && !txn.IsDeleted
	}), nil
}

// ListFlagged returns every flagged entry, soft-deleted ones included, newest first.
func (r *TransactionRepo) ListFlagged(_ context.Context) ([]domain.Transaction, error) {
	return r.list(func(txn *domain.Transaction) bool {
		return txn.IsFlagged
	}), nil
}

// CountFlaggedSince counts flagged entries created at or after since.
func (r *TransactionRepo) CountFlaggedSince(_ context.Context, since time.Time) (int, error) {
	return len(r.list(func(txn *domain.Transaction) bool {
		return txn.IsFlagged && !txn.CreatedAt.Before(since)
	})), nil
}

// SoftDelete marks an entry deleted. It returns false for unknown ids.
func (r *TransactionRepo) SoftDelete(_ context.Context, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.txByID[id]
	if !ok {
		return false, nil
	}
	rec.tx.IsDeleted = true
	return true, nil
}

func (r *TransactionRepo) list(keep func(*domain.Transaction) bool) []domain.Transaction {
	r.store.mu.RLock()
	var recs []*txRecord
	for _, rec := range r.store.txns {
		if keep(&rec.tx) {
			recs = append(recs, &txRecord{seq: rec.seq, tx: rec.tx})
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].tx.CreatedAt.Equal(recs[j].tx.CreatedAt) {
			return recs[i].tx.CreatedAt.After(recs[j].tx.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]domain.Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.tx)
	}
	return out
}
