package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil))}
}

func TestWebhookNotifier_Send_Success(t *testing.T) {
	var received AlertPayload
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		signature = r.Header.Get("X-Signature")
		body, _ := io.ReadAll(r.Body)
		assert.True(t, NewHMACSigner("hook-secret").Verify(body, signature))
		assert.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "noreply@wallet.com", srv.Client(), newTestLogger(),
		WithSigner(NewHMACSigner("hook-secret")))

	err := n.Send(context.Background(), "alice@example.com", "Suspicious Withdrawal Alert", "A large withdrawal of 1500.00 was flagged.")
	require.NoError(t, err)

	assert.Equal(t, "noreply@wallet.com", received.Sender)
	assert.Equal(t, "alice@example.com", received.Recipient)
	assert.Equal(t, "Suspicious Withdrawal Alert", received.Subject)
	assert.Equal(t, "A large withdrawal of 1500.00 was flagged.", received.Body)
	assert.NotEmpty(t, signature)
}

func TestWebhookNotifier_Send_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}
		return okResponse(), nil
	}}

	n := NewWebhookNotifier("http://relay.local/hook", "noreply@wallet.com", client, newTestLogger(),
		WithRetryIntervals(time.Millisecond, time.Millisecond, time.Millisecond))

	require.NoError(t, n.Send(context.Background(), "a@b.c", "s", "b"))
	assert.Equal(t, int32(3), calls.Load())
	assert.Nil(t, n.signer)
}

func TestWebhookNotifier_Send_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}}

	n := NewWebhookNotifier("http://relay.local/hook", "noreply@wallet.com", client, newTestLogger(),
		WithRetryIntervals(time.Millisecond, time.Millisecond))

	err := n.Send(context.Background(), "a@b.c", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookNotifier_Send_ContextCancelled(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("timeout")
	}}
	n := NewWebhookNotifier("http://relay.local/hook", "noreply@wallet.com", client, newTestLogger(),
		WithRetryIntervals(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Send(ctx, "a@b.c", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier("noreply@wallet.com", zerolog.New(&buf))

	require.NoError(t, n.Send(context.Background(), "alice@example.com", "Suspicious Transfer Activity", "High-frequency transfers detected from your account."))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "noreply@wallet.com", entry["from"])
	assert.Equal(t, "alice@example.com", entry["to"])
	assert.Equal(t, "Suspicious Transfer Activity", entry["subject"])
	assert.Equal(t, "High-frequency transfers detected from your account.", entry["message"])
}
