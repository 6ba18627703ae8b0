// Package runtimeapi is the typed client for the upstream runtime API:
// schedules, tracking entities, problem tickets, and the Solution/OE
// remediation primitives. It is stateless — one HTTP request per method —
// and performs no retries; retry policy belongs to the caller.
package runtimeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/remerr"
)

// Timeout classes: discovery/validation calls, long-running triggers, and
// status polling each get their own ceiling.
const (
	timeoutStandard = 60 * time.Second
	timeoutTrigger  = 120 * time.Second
	timeoutPoll     = 30 * time.Second
)

// Client is a thin, stateless HTTP client over the runtime API. A fresh
// Client is safe for concurrent use from multiple goroutines; each call
// issues its own request against the shared underlying *http.Client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Client configured from cfg. When cfg.OAuthClientID and
// cfg.OAuthTokenURL are both set, the bearer header is replaced by an OAuth2 client-credentials token
// source; otherwise the static cfg.APIKey is sent as a bearer header on
// every request.
func New(cfg config.RuntimeConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	hc := &http.Client{Timeout: timeoutTrigger}

	if cfg.OAuthClientID != "" && cfg.OAuthTokenURL != "" {
		oauthCfg := clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
		}
		return &Client{baseURL: base, http: oauthCfg.Client(context.Background())}
	}

	return &Client{baseURL: base, apiKey: cfg.APIKey, http: hc}
}

// do executes an authenticated JSON request against the runtime API.
// Non-2xx responses are converted into a categorised *remerr.Error.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req) // #nosec G107 -- baseURL is operator-configured, not attacker-controlled
	if err != nil {
		if ctx.Err() != nil {
			return nil, remerr.New(remerr.KindTimeout, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return nil, remerr.New(remerr.KindTransport, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer res.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, c.describeError(res.StatusCode, b, method, path)
	}
	return b, nil
}

func (c *Client) describeError(status int, body []byte, method, path string) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := fmt.Sprintf("runtime returned %d for %s %s", status, method, path)
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil {
		if apiErr.Error != "" {
			msg = apiErr.Error
		} else if apiErr.Message != "" {
			msg = apiErr.Message
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return remerr.New(remerr.KindAuth, msg, nil)
	case status >= 500:
		return remerr.New(remerr.KindServer5xx, msg, nil)
	case status >= 400:
		return remerr.New(remerr.KindServer4xx, msg, nil)
	default:
		return remerr.New(remerr.KindUnknown, msg, nil)
	}
}
