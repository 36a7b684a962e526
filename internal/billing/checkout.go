package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adstudio/backend/internal/config"
)

// CheckoutRequest is sent to the hosted checkout provider.
type CheckoutRequest struct {
	Plan              string `json:"plan"`
	ClientReferenceID string `json:"client_reference_id"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
}

// CheckoutProvider creates hosted checkout sessions and returns the page URL.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// ErrCheckoutUnavailable indicates the provider could not create a session.
var ErrCheckoutUnavailable = errors.New("checkout provider unavailable")

// HostedCheckout talks to the hosted payment page provider over HTTP.
type HostedCheckout struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	client     *http.Client
}

// NewHostedCheckout constructs a client from cfg. A nil client uses one with
// cfg.Timeout.
func NewHostedCheckout(cfg config.CheckoutConfig, client *http.Client) *HostedCheckout {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HostedCheckout{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		client:     client,
	}
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// CreateSession implements CheckoutProvider. Redirect URLs left empty on req
// are filled from configuration.
func (h *HostedCheckout) CreateSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if h.baseURL == "" {
		return "", fmt.Errorf("%w: no provider configured", ErrCheckoutUnavailable)
	}
	if req.SuccessURL == "" {
		req.SuccessURL = h.successURL
	}
	if req.CancelURL == "" {
		req.CancelURL = h.cancelURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrCheckoutUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload checkoutResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrCheckoutUnavailable, err)
	}

	u, err := url.Parse(strings.TrimSpace(payload.URL))
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid redirect url %q", ErrCheckoutUnavailable, payload.URL)
	}
	return u.String(), nil
}
