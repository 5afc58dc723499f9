package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// defaultRetryIntervals are the waits between delivery attempts.
var defaultRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlertPayload is the JSON body POSTed to the alert webhook.
type AlertPayload struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	SentAt    int64  `json:"sent_at"`
}

// WebhookNotifier implements ports.Notifier by POSTing alerts to a mail relay webhook.
type WebhookNotifier struct {
	url        string
	sender     string
	signer     *HMACSigner
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger
}

// WebhookNotifierOption customises a WebhookNotifier.
type WebhookNotifierOption func(*WebhookNotifier)

// WithSigner signs each payload into the X-Signature header.
func WithSigner(signer *HMACSigner) WebhookNotifierOption {
	return func(n *WebhookNotifier) { n.signer = signer }
}

// WithRetryIntervals replaces the default retry schedule.
func WithRetryIntervals(intervals ...time.Duration) WebhookNotifierOption {
	return func(n *WebhookNotifier) { n.retries = intervals }
}

// NewWebhookNotifier creates a notifier delivering to url.
func NewWebhookNotifier(url, sender string, httpClient HTTPClient, log zerolog.Logger, opts ...WebhookNotifierOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:        url,
		sender:     sender,
		httpClient: httpClient,
		retries:    defaultRetryIntervals,
		log:        log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send delivers one alert, retrying on transport errors and non-2xx responses.
func (n *WebhookNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(AlertPayload{
		Sender:    n.sender,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(n.retries); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("alert delivery cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(n.retries[attempt-1]):
			}
		}

		lastErr = n.post(ctx, payload)
		if lastErr == nil {
			n.log.Debug().Str("subject", subject).Int("attempt", attempt+1).Msg("notifier: delivered")
			return nil
		}
		n.log.Warn().Err(lastErr).Str("subject", subject).Int("attempt", attempt+1).Msg("notifier: delivery failed")
	}

	return fmt.Errorf("alert delivery exhausted retries: %w", lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.signer != nil {
		req.Header.Set("X-Signature", n.signer.Sign(payload))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier implements ports.Notifier by writing alerts to the log.
// It is used when no webhook is configured.
type LogNotifier struct {
	sender string
	log    zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(sender string, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{sender: sender, log: log}
}

// Send logs the alert and never fails.
func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.log.Info().
		Str("from", n.sender).
		Str("to", recipient).
		Str("subject", subject).
		Msg(body)
	return nil
}
