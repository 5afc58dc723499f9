// Package storage selects and opens the Ledger Store backend named in configuration.
package storage

import (
	"context"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users        ports.UserRepository
	Wallets      ports.WalletRepository
	Transactions ports.TransactionRepository
	Transactor   ports.DBTransactor
	Health       ports.HealthChecker

	close func()
}

// Close releases the backend's resources.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the configured backend. For postgres it applies pending
// migrations first when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(cfg, log); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Store{
			Users:        postgres.NewUserRepo(pool),
			Wallets:      postgres.NewWalletRepo(pool),
			Transactions: postgres.NewTransactionRepo(pool),
			Transactor:   postgres.NewTransactor(pool, cfg.LockTimeout),
			Health:       postgres.NewHealthCheck(pool),
			close:        pool.Close,
		}, nil

	case DriverMemory:
		log.Warn().Msg("Using in-memory ledger store, data is lost on exit")
		s := memory.New()
		return &Store{
			Users:        memory.NewUserRepo(s),
			Wallets:      memory.NewWalletRepo(s),
			Transactions: memory.NewTransactionRepo(s),
			Transactor:   s,
			Health:       s,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
