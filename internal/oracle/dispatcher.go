// Package oracle delivers resolution requests to the external resolver
// service over signed HTTP webhooks.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/identity"
)

// Dispatcher implements domain.ResolverDispatcher by POSTing resolution
// requests to the resolver's webhook endpoint. Delivery is best-effort: the
// market transition has already committed by the time Dispatch runs, and a
// failed delivery is retried by operators re-requesting resolution out of
// band, not by the engine.
type Dispatcher struct {
	endpoint string
	auth     *identity.WebhookAuth
	client   *http.Client
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher posting to the given endpoint URL.
// It uses a default HTTP client with a 10-second timeout.
func NewDispatcher(endpoint string, auth *identity.WebhookAuth, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		endpoint: endpoint,
		auth:     auth,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("component", "oracle")),
	}
}

// Dispatch delivers a resolution request to the resolver webhook.
func (d *Dispatcher) Dispatch(ctx context.Context, r domain.ResolutionRequest) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("oracle: marshal request %s: %w", r.RequestID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.auth.Headers(http.MethodPost, requestPath(d.endpoint), string(body)) {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle: deliver request %s: %w", r.RequestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("oracle: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	d.logger.Info("resolution request delivered",
		slog.String("request_id", r.RequestID),
		slog.Uint64("market_id", uint64(r.MarketID)),
	)
	return nil
}

// requestPath extracts the path component the signature covers.
func requestPath(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Compile-time interface check.
var _ domain.ResolverDispatcher = (*Dispatcher)(nil)
