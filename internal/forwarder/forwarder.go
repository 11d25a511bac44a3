// Package forwarder relays normalized tracking events to the downstream
// tracking endpoint over HTTP.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

var ErrUpstreamStatus = errors.New("tracking endpoint rejected event")

// HTTPForwarder POSTs events as JSON with a bearer token
type HTTPForwarder struct {
	url    string
	apiKey string
	client *http.Client
}

// New creates a forwarder. An empty apiKey sends no Authorization header.
func New(url, apiKey string, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Forward sends one event. Any non-2xx answer is an error wrapping
// ErrUpstreamStatus.
func (f *HTTPForwarder) Forward(ctx context.Context, event *domain.TrackingEvent, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to forward event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamStatus, resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
