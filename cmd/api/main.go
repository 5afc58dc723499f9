package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/storage"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/fraud"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("WLG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set (WLG_JWT_SECRET)")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Wallet Ledger")

	ctx := context.Background()

	// Ledger store (postgres or memory)
	store, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer store.Close()
	log.Info().Msg("Ledger store ready")

	// Redis backs rate limiting and idempotency keys
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	rules, err := fraud.NewRules(cfg.Fraud.LargeWithdrawalThreshold, cfg.Fraud.BurstWindow, cfg.Fraud.BurstThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fraud configuration")
	}

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	notifier := newNotifier(cfg.Notifier, log)

	authSvc := service.NewAuthService(store.Users, store.Transactor, hashSvc, tokenSvc)
	ledgerSvc := service.NewLedgerService(
		store.Wallets,
		store.Transactions,
		store.Users,
		store.Transactor,
		notifier,
		rules,
		logger.Component(log, "ledger"),
	)
	reportingSvc := service.NewReportingService(store.Transactions, store.Wallets, logger.Component(log, "reporting"))

	if cfg.Admin.Username != "" {
		admin, err := authSvc.EnsureAdmin(ctx, ports.RegisterRequest{
			Username: cfg.Admin.Username,
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to provision admin user")
		}
		log.Info().Str("user_id", admin.ID.String()).Str("username", admin.Username).Msg("Admin user ready")
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:          authSvc,
		LedgerSvc:        ledgerSvc,
		ReportingSvc:     reportingSvc,
		TokenSvc:         tokenSvc,
		IdempotencyStore: redisStorage.NewIdempotencyStore(rdb),
		IdempotencyTTL:   cfg.Idempotency.TTL,
		RateLimitStore:   redisStorage.NewRateLimitStore(rdb),
		HealthCheckers:   []ports.HealthChecker{store.Health, redisStorage.NewHealthCheck(rdb)},
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let pending alerts finish before the store goes away.
	ledgerSvc.Wait()

	log.Info().Msg("Server exited")
}

// newNotifier posts alerts to the configured webhook, or only logs them when none is set.
func newNotifier(cfg config.NotifierConfig, log zerolog.Logger) ports.Notifier {
	nlog := logger.Component(log, "notifier")
	if cfg.WebhookURL == "" {
		return service.NewLogNotifier(cfg.Sender, nlog)
	}

	var opts []service.WebhookNotifierOption
	if cfg.SigningSecret != "" {
		opts = append(opts, service.WithSigner(service.NewHMACSigner(cfg.SigningSecret)))
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return service.NewWebhookNotifier(cfg.WebhookURL, cfg.Sender, client, nlog, opts...)
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}
