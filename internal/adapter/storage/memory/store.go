// Package memory is an in-process ledger store. Write transactions are
// serialised: Begin blocks until the previous writer commits or rolls back,
// and staged writes become visible only on Commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrForeignTx         = errors.New("memory: transaction was not started by this store")
	ErrDuplicateUsername = domain.ErrUsernameTaken
	ErrUnknownUser       = errors.New("memory: wallet owner does not exist")
)

type txRecord struct {
	seq int64
	tx  domain.Transaction
}

// Store holds users, wallets and ledger entries.
type Store struct {
	sem chan struct{} // single writer

	mu        sync.RWMutex
	users     map[uuid.UUID]domain.User
	usernames map[string]uuid.UUID
	wallets   map[uuid.UUID]domain.Wallet
	txns      []*txRecord
	txByID    map[uuid.UUID]*txRecord
	seq       int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sem:       make(chan struct{}, 1),
		users:     make(map[uuid.UUID]domain.User),
		usernames: make(map[string]uuid.UUID),
		wallets:   make(map[uuid.UUID]domain.Wallet),
		txByID:    make(map[uuid.UUID]*txRecord),
	}
}

// Begin starts a write transaction. It implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{
		store:   s,
		wallets: make(map[uuid.UUID]domain.Wallet),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the dependency name.
func (s *Store) Name() string {
	return "memory"
}

// Tx buffers writes until Commit. Methods of pgx.Tx other than Commit and
// Rollback are not supported and panic.
type Tx struct {
	pgx.Tx

	store   *Store
	users   []domain.User
	wallets map[uuid.UUID]domain.Wallet
	txns    []domain.Transaction
	done    bool
}

// Commit publishes the staged writes atomically and releases the writer slot.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for _, u := range t.users {
		s.users[u.ID] = u
		s.usernames[u.Username] = u.ID
	}
	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for _, txn := range t.txns {
		s.seq++
		rec := &txRecord{seq: s.seq, tx: txn}
		s.txns = append(s.txns, rec)
		s.txByID[txn.ID] = rec
	}
	s.mu.Unlock()

	<-s.sem
	return nil
}

// Rollback discards the staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	<-t.store.sem
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.done {
		return nil, ErrForeignTx
	}
	return t, nil
}

// wallet reads a wallet as seen by t: staged first, then committed.
func (t *Tx) wallet(userID uuid.UUID) (domain.Wallet, bool) {
	if w, ok := t.wallets[userID]; ok {
		return w, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	w, ok := t.store.wallets[userID]
	return w, ok
}

func (t *Tx) userExists(userID uuid.UUID) bool {
	for _, u := range t.users {
		if u.ID == userID {
			return true
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.users[userID]
	return ok
}
