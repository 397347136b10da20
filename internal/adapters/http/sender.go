package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// WindowSenderConfig describes the webhook endpoint.
type WindowSenderConfig struct {
	// URL receives one POST per window.
	URL string

	// AuthKey is sent as a bearer token when set.
	AuthKey string
}

// WindowSender implements ports.WindowSink by posting each window as JSON.
// The window ID is sent as an idempotency key so the receiver can discard
// retried deliveries it has already stored.
type WindowSender struct {
	config   WindowSenderConfig
	client   ports.HTTPClient
	logger   ports.Logger
	hostname string
}

// NewWindowSender creates a new HTTP window sender.
func NewWindowSender(config WindowSenderConfig, client ports.HTTPClient, logger ports.Logger) *WindowSender {
	hostname, _ := os.Hostname()
	return &WindowSender{
		config:   config,
		client:   client,
		logger:   logger,
		hostname: hostname,
	}
}

// Flush transmits a window to the webhook. Any non-2xx response is a failure.
func (s *WindowSender) Flush(ctx context.Context, w *domain.Window) error {
	body, err := json.Marshal(w.Payload())
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if s.config.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", w.ID)
	req.Header.Set("X-Platewatch-Hostname", s.hostname)
	req.Header.Set("X-Platewatch-OSArch", runtime.GOOS+"/"+runtime.GOARCH)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Debug("window delivered",
		ports.String("window", w.ID),
		ports.Int("status", resp.StatusCode),
	)
	return nil
}

// Close implements ports.WindowSink.
func (s *WindowSender) Close() error {
	return nil
}
