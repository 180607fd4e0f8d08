// internal/clients/notifier_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// Notifier delivers messages to members. Actual email/push delivery is
// an external collaborator; this package only carries the handoff.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// NoopNotifier logs and drops messages. Used in tests and local runs.
type NoopNotifier struct {
	Logger *slog.Logger
}

func (n *NoopNotifier) Notify(_ context.Context, recipient, subject, _ string) error {
	if n.Logger != nil {
		n.Logger.Info("notification dropped (noop notifier)",
			"recipient", recipient, "subject", subject)
	}
	return nil
}

// NotifierClient posts messages to the notification relay over HTTP.
// Deliveries retry with exponential backoff behind a circuit breaker;
// a relay outage must never fail the mutating operation that triggered
// the notification, so callers treat errors as log-and-continue.
type NotifierClient struct {
	BaseURL    string
	HTTPClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxTries   uint
}

func NewNotifierClient(baseURL string) *NotifierClient {
	return &NotifierClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "notifier",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		maxTries: 3,
	}
}

func (c *NotifierClient) Notify(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"recipient": recipient,
		"subject":   subject,
		"body":      body,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, c.post(ctx, payload)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxTries))
	})
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	return nil
}

func (c *NotifierClient) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier relay returned status %d", resp.StatusCode)
	}
	return nil
}
