package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"arpledger/internal/domain"
)

// EventPath is the dashboard endpoint that accepts events
const EventPath = "/api/event"

// HTTPConfig configures the dashboard poster
type HTTPConfig struct {
	// BaseURL of the dashboard, e.g. http://localhost:5000
	BaseURL string
	Timeout time.Duration
	// HTTP2 uses prior-knowledge h2c for http:// and negotiated HTTP/2 for https://
	HTTP2 bool
}

// HTTP posts events as JSON to the dashboard
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates a dashboard sink
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("dashboard url required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("dashboard url %q must be http or https", cfg.BaseURL)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTP2 {
		client.Transport = buildHTTP2Transport(strings.HasPrefix(cfg.BaseURL, "http://"))
	}

	return &HTTP{
		url:    strings.TrimRight(cfg.BaseURL, "/") + EventPath,
		client: client,
	}, nil
}

func buildHTTP2Transport(cleartext bool) http.RoundTripper {
	if !cleartext {
		return &http2.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	// h2c with prior knowledge
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

// Post sends ev. Any non-2xx status is an error.
func (h *HTTP) Post(ctx context.Context, ev domain.ReconciliationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dashboard returned %s", resp.Status)
	}
	return nil
}
