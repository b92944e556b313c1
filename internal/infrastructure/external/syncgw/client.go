// Package syncgw implements the Sync Gateway client: snapshot delivery
// to the backend collector. Delivery is best-effort from the session
// runtime's point of view - failures are retried off the hot path and
// never mutate or block in-memory session state.
package syncgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/focusflow-app/focusflow-hub/internal/domain/session"
	"github.com/focusflow-app/focusflow-hub/pkg/circuitbreaker"
	"github.com/focusflow-app/focusflow-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Sync Gateway client.
type ClientConfig struct {
	// BaseURL is the collector base URL.
	BaseURL string

	// APIKey authenticates this device with the collector.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client pushes session snapshots to the Sync Gateway over HTTP JSON.
// A circuit breaker shields the collector during outages; retries with
// backoff absorb transient failures.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// NewClient creates a Sync Gateway client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retry.SyncGatewayRetrier(),
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("sync-gateway")),
		logger:     config.Logger.With("component", "sync_gateway"),
	}
}

// Push implements session.SyncGateway: it delivers one snapshot,
// retrying transient failures within ctx.
func (c *Client) Push(ctx context.Context, snap session.Snapshot) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.send(ctx, snap)
		})
	})
}

func (c *Client) send(ctx context.Context, snap session.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal snapshot: %w", err))
	}

	url := c.config.BaseURL + "/api/v1/sessions/" + snap.SessionID + "/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// The collector already holds a newer generation: drop silently.
		c.logger.Debug("collector rejected stale snapshot",
			"session_id", snap.SessionID, "generation", snap.Generation)
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("collector rejected snapshot: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("collector unavailable: status %d", resp.StatusCode)
	}
}

// BreakerState exposes the circuit state for the health endpoint.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
