package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/fraud"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const notifyTimeout = 30 * time.Second

// LedgerServiceImpl implements ports.LedgerService with pessimistic row locking.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	users      ports.UserDirectory
	transactor ports.DBTransactor
	notifier   ports.Notifier
	rules      fraud.Rules
	log        zerolog.Logger

	now      func() time.Time
	inflight sync.WaitGroup
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	users ports.UserDirectory,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	rules fraud.Rules,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		users:      users,
		transactor: transactor,
		notifier:   notifier,
		rules:      rules,
		log:        log,
		now:        time.Now,
	}
}

// Deposit credits the user's wallet.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Transaction, error) {
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(amount)
	if newBalance.GreaterThanOrEqual(domain.MaxMoney) {
		return nil, apperror.ErrInvalidAmount()
	}

	txn := &domain.Transaction{
		ID:         uuid.New(),
		FromUserID: req.UserID,
		Amount:     amount,
		Kind:       domain.TransactionKindDeposit,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, req.UserID, newBalance); err != nil {
		return nil, storeError("update balance", err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, storeError("create transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", amount.StringFixed(domain.MoneyScale)).
		Msg("deposit processed")

	return txn, nil
}

// Withdraw debits the user's wallet and flags large withdrawals.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return nil, apperror.ErrInvalidWithdrawal()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Funds check happens under the row lock.
	if !wallet.CanDebit(amount) {
		return nil, apperror.ErrInvalidWithdrawal()
	}

	txn := &domain.Transaction{
		ID:         uuid.New(),
		FromUserID: req.UserID,
		Amount:     amount,
		Kind:       domain.TransactionKindWithdraw,
		CreatedAt:  s.now().UTC(),
		IsFlagged:  s.rules.IsLargeWithdrawal(amount),
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, req.UserID, wallet.Balance.Sub(amount)); err != nil {
		return nil, storeError("update balance", err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, storeError("create transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", amount.StringFixed(domain.MoneyScale)).
		Bool("flagged", txn.IsFlagged).
		Msg("withdrawal processed")

	if txn.IsFlagged {
		s.notify(ctx, req.UserID, func(email string) domain.Alert {
			return domain.LargeWithdrawalAlert(txn.ID, email, amount)
		})
	}

	return txn, nil
}

// Transfer moves funds between two users atomically and flags transfer bursts.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return nil, apperror.ErrInvalidTransferDetails()
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return nil, apperror.ErrInvalidTransferDetails()
	}

	recipient, err := s.users.Resolve(ctx, to)
	if err != nil {
		return nil, storeError("resolve recipient", err)
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	fromID, toID := req.FromUserID, recipient.ID

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock in ascending id order so opposite transfers cannot deadlock.
	wallets := make(map[uuid.UUID]*domain.Wallet, 2)
	for _, id := range lockOrder(fromID, toID) {
		w, err := s.lockWallet(ctx, dbTx, id)
		if err != nil {
			return nil, err
		}
		wallets[id] = w
	}

	source := wallets[fromID]
	if amount.GreaterThan(source.Balance) {
		return nil, apperror.ErrInsufficientBalance()
	}

	if fromID != toID {
		destBalance := wallets[toID].Balance.Add(amount)
		if destBalance.GreaterThanOrEqual(domain.MaxMoney) {
			return nil, apperror.ErrInvalidTransferDetails()
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, fromID, source.Balance.Sub(amount)); err != nil {
			return nil, storeError("debit source", err)
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, toID, destBalance); err != nil {
			return nil, storeError("credit destination", err)
		}
	}

	now := s.now().UTC()
	prior, err := s.txRepo.CountTransfersSince(ctx, dbTx, fromID, s.rules.WindowStart(now))
	if err != nil {
		return nil, storeError("count recent transfers", err)
	}

	txn := &domain.Transaction{
		ID:         uuid.New(),
		FromUserID: fromID,
		ToUserID:   &toID,
		Amount:     amount,
		Kind:       domain.TransactionKindTransfer,
		CreatedAt:  now,
		IsFlagged:  s.rules.IsTransferBurst(prior),
	}

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, storeError("create transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("from_user_id", fromID.String()).
		Str("to_user_id", toID.String()).
		Str("amount", amount.StringFixed(domain.MoneyScale)).
		Int("recent_transfers", prior).
		Bool("flagged", txn.IsFlagged).
		Msg("transfer processed")

	if txn.IsFlagged {
		s.notify(ctx, fromID, func(email string) domain.Alert {
			return domain.TransferBurstAlert(txn.ID, email)
		})
	}

	return txn, nil
}

// GetWallet returns the user's wallet, creating an empty one on first access.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, userID)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	return wallet, nil
}

// Wait blocks until every pending alert delivery has finished.
func (s *LedgerServiceImpl) Wait() {
	s.inflight.Wait()
}

// lockWallet ensures userID has a wallet and locks its row for the rest of dbTx.
func (s *LedgerServiceImpl) lockWallet(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	if err := s.walletRepo.Ensure(ctx, dbTx, userID); err != nil {
		return nil, storeError("ensure wallet", err)
	}
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, storeError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return wallet, nil
}

// notify delivers an alert to userID in the background. Failures are logged only.
func (s *LedgerServiceImpl) notify(ctx context.Context, userID uuid.UUID, build func(email string) domain.Alert) {
	if s.notifier == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		user, err := s.users.GetByID(nctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("alert: failed to look up recipient")
			return
		}
		if user == nil || user.Email == "" {
			s.log.Debug().Str("user_id", userID.String()).Msg("alert: no email on file, skipping")
			return
		}

		alert := build(user.Email)
		if err := s.notifier.Send(nctx, alert.Recipient, alert.Subject, alert.Body); err != nil {
			s.log.Warn().Err(err).
				Str("tx_id", alert.TransactionID.String()).
				Str("subject", alert.Subject).
				Msg("alert: delivery failed")
			return
		}
		s.log.Info().
			Str("tx_id", alert.TransactionID.String()).
			Str("subject", alert.Subject).
			Msg("alert: delivered")
	}()
}

// lockOrder returns the distinct ids in ascending byte order.
func lockOrder(a, b uuid.UUID) []uuid.UUID {
	switch c := bytes.Compare(a[:], b[:]); {
	case c == 0:
		return []uuid.UUID{a}
	case c < 0:
		return []uuid.UUID{a, b}
	default:
		return []uuid.UUID{b, a}
	}
}

