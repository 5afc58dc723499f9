package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc          ports.AuthService
	LedgerSvc        ports.LedgerService
	ReportingSvc     ports.ReportingService
	TokenSvc         ports.TokenService
	IdempotencyStore ports.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	r.Use(middleware.AuditLog(deps.Logger))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	var idem gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.IdempotencyStore != nil {
		idem = middleware.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	txHandler := NewTransactionHandler(deps.ReportingSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet_read"), walletHandler.GetWallet)
		wallet.POST("/deposit", rl("wallet_write"), idem, walletHandler.Deposit)
		wallet.POST("/withdraw", rl("wallet_write"), idem, walletHandler.Withdraw)
		wallet.POST("/transfer", rl("wallet_write"), idem, walletHandler.Transfer)
	}

	v1.GET("/transactions", jwtAuth, rl("wallet_read"), txHandler.ListHistory)

	// --- Admin routes ---
	adminHandler := NewAdminHandler(deps.ReportingSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin(), rl("admin"))
	{
		admin.GET("/flagged", adminHandler.ListFlagged)
		admin.GET("/summary", adminHandler.Summary)
		admin.GET("/top-users", adminHandler.TopUsers)
		admin.GET("/fraud-scan", adminHandler.FraudScan)
		admin.DELETE("/transactions/:id", adminHandler.DeleteTransaction)
	}

	return r
}
