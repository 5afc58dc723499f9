package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/fraud"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp runs the real router, services and Redis stores over the in-memory ledger store.
type testApp struct {
	server *httptest.Server
	ledger *service.LedgerServiceImpl
	keys   int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := memory.New()
	users := memory.NewUserRepo(store)
	wallets := memory.NewWalletRepo(store)
	txns := memory.NewTransactionRepo(store)

	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{
		Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16,
	})
	tokenSvc := service.NewJWTTokenService("e2e-secret", time.Hour, "wallet-ledger")
	authSvc := service.NewAuthService(users, store, hashSvc, tokenSvc)
	ledgerSvc := service.NewLedgerService(wallets, txns, users, store,
		service.NewLogNotifier("noreply@wallet.com", zerolog.Nop()), fraud.DefaultRules(), zerolog.Nop())
	reportingSvc := service.NewReportingService(txns, wallets, zerolog.Nop())

	_, err := authSvc.EnsureAdmin(context.Background(), ports.RegisterRequest{
		Username: "root",
		Password: "root-password",
	})
	require.NoError(t, err)

	router := SetupRouter(RouterDeps{
		AuthSvc:          authSvc,
		LedgerSvc:        ledgerSvc,
		ReportingSvc:     reportingSvc,
		TokenSvc:         tokenSvc,
		IdempotencyStore: redisStore.NewIdempotencyStore(rdb),
		IdempotencyTTL:   time.Hour,
		RateLimitStore:   redisStore.NewRateLimitStore(rdb),
		HealthCheckers:   []ports.HealthChecker{store, redisStore.NewHealthCheck(rdb)},
		Logger:           zerolog.Nop(),
	})

	app := &testApp{server: httptest.NewServer(router), ledger: ledgerSvc}
	t.Cleanup(func() {
		app.server.Close()
		ledgerSvc.Wait()
	})
	return app
}

func (a *testApp) call(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/api/v1/wallet/") {
		a.keys++
		req.Header.Set("Idempotency-Key", fmt.Sprintf("e2e-%d", a.keys))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (a *testApp) signup(t *testing.T, username string) string {
	t.Helper()
	code, _ := a.call(t, http.MethodPost, "/api/v1/auth/register", "",
		fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password123"}`, username, username))
	require.Equal(t, http.StatusCreated, code)
	return a.login(t, username, "password123")
}

func (a *testApp) login(t *testing.T, username, password string) string {
	t.Helper()
	code, body := a.call(t, http.MethodPost, "/api/v1/auth/login", "",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	require.Equal(t, http.StatusOK, code)
	return body["data"].(map[string]any)["token"].(string)
}

func dataOf(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func TestE2E_WalletFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup(t, "alice")
	bob := app.signup(t, "bob")

	code, body := app.call(t, http.MethodPost, "/api/v1/wallet/deposit", alice, `{"amount":500}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "500.00", dataOf(body)["amount"])

	code, body = app.call(t, http.MethodPost, "/api/v1/wallet/transfer", alice, `{"to_user":"bob","amount":"200"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "transfer", dataOf(body)["kind"])

	code, body = app.call(t, http.MethodPost, "/api/v1/wallet/withdraw", alice, `{"amount":"1500"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "LEDGER_002", body["error_code"])

	code, body = app.call(t, http.MethodGet, "/api/v1/wallet", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "300.00", dataOf(body)["balance"])

	code, body = app.call(t, http.MethodGet, "/api/v1/wallet", bob, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "200.00", dataOf(body)["balance"])

	code, body = app.call(t, http.MethodGet, "/api/v1/transactions", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 2)

	code, body = app.call(t, http.MethodPost, "/api/v1/wallet/transfer", alice, `{"to_user":"nobody","amount":"1"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "LEDGER_004", body["error_code"])
}

func TestE2E_AdminReports(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup(t, "alice")
	admin := app.login(t, "root", "root-password")

	code, _ := app.call(t, http.MethodGet, "/api/v1/admin/summary", alice, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = app.call(t, http.MethodPost, "/api/v1/wallet/deposit", alice, `{"amount":"5000"}`)
	require.Equal(t, http.StatusCreated, code)
	code, body := app.call(t, http.MethodPost, "/api/v1/wallet/withdraw", alice, `{"amount":"2000"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, dataOf(body)["is_flagged"])
	flaggedID := dataOf(body)["id"].(string)

	code, body = app.call(t, http.MethodGet, "/api/v1/admin/summary", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3000.00", dataOf(body)["total_balance"])

	code, body = app.call(t, http.MethodGet, "/api/v1/admin/top-users?n=1", admin, "")
	require.Equal(t, http.StatusOK, code)
	top := body["data"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0].(map[string]any)["username"])

	code, body = app.call(t, http.MethodGet, "/api/v1/admin/fraud-scan", admin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Fraud scan complete. 1 suspicious transactions found.", dataOf(body)["message"])

	code, _ = app.call(t, http.MethodDelete, "/api/v1/admin/transactions/"+flaggedID, admin, "")
	assert.Equal(t, http.StatusNoContent, code)

	code, body = app.call(t, http.MethodGet, "/api/v1/admin/flagged", admin, "")
	require.Equal(t, http.StatusOK, code)
	flagged := body["data"].([]any)
	require.Len(t, flagged, 1)
	assert.Equal(t, true, flagged[0].(map[string]any)["is_deleted"])

	code, body = app.call(t, http.MethodGet, "/api/v1/transactions", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1, "soft-deleted withdrawal leaves the history")
}

func TestE2E_RegisterNeverGrantsAdmin(t *testing.T) {
	app := newTestApp(t)

	code, body := app.call(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"username":"mallory","password":"password123","is_admin":true}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, false, dataOf(body)["is_admin"])

	token := app.login(t, "mallory", "password123")
	code, _ = app.call(t, http.MethodGet, "/api/v1/admin/flagged", token, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = app.call(t, http.MethodPost, "/api/v1/auth/register", "",
		`{"username":"mallory","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AUTH_002", body["error_code"])
}

func TestE2E_Health(t *testing.T) {
	app := newTestApp(t)

	code, body := app.call(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}
