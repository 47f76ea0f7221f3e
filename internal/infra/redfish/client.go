// Package redfish implements the HTTP adapter for BMC Redfish APIs.
package redfish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gardentiller/tiller/internal/resilience"
)

// ServiceRoot is the entry point of every Redfish service.
const ServiceRoot = "/redfish/v1"

// Config holds HTTP adapter settings.
type Config struct {
	MaxTries   int
	RetryDelay time.Duration
	Timeout    time.Duration
	VerifySSL  bool // lab BMCs usually carry self-signed certificates
}

// Client performs resilient Redfish GETs against one BMC. All clients
// of the same operation class share one breaker via the registry.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	ex       *resilience.Executor
	breaker  *resilience.Breaker
	policy   resilience.Policy
}

// NewClient creates a client for the BMC at address (host or host:port).
func NewClient(address, username, password string, cfg Config, ex *resilience.Executor, breaker *resilience.Breaker) *Client {
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  "https://" + address,
		username: username,
		password: password,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifySSL},
			},
		},
		ex:      ex,
		breaker: breaker,
		policy:  resilience.Policy{MaxAttempts: cfg.MaxTries, InitialDelay: cfg.RetryDelay},
	}
}

// newTestClient builds a client against an arbitrary base URL with a
// caller-supplied transport.
func newTestClient(baseURL string, httpClient *http.Client, policy resilience.Policy, ex *resilience.Executor, breaker *resilience.Breaker) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		ex:      ex,
		breaker: breaker,
		policy:  policy,
	}
}

// Get fetches a Redfish resource and decodes it. The result carries
// attempt count and breaker state for the caller's diagnostics.
func (c *Client) Get(ctx context.Context, uri string) resilience.Result[map[string]any] {
	return resilience.Do(ctx, c.ex, resilience.Operation[map[string]any]{
		Name:    "redfish.get",
		Target:  c.baseURL + uri,
		Policy:  c.policy,
		Breaker: c.breaker,
		Fn: func(ctx context.Context) (map[string]any, error) {
			return c.fetch(ctx, uri)
		},
	})
}

func (c *Client) fetch(ctx context.Context, uri string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+uri, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resilience.Permanent(fmt.Errorf("authentication failed (401) for %s: check BMC credentials", c.baseURL))
	case resp.StatusCode >= 500:
		return nil, resilience.Transient(fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body)))
	case resp.StatusCode >= 400:
		return nil, resilience.Permanent(fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body)))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		// A malformed body will not improve on retry.
		return nil, resilience.Permanent(fmt.Errorf("malformed redfish response from %s: %w", c.baseURL+uri, err))
	}
	return payload, nil
}

func classifyTransportError(err error) error {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return resilience.Permanent(fmt.Errorf(
			"TLS certificate verification failed: %w (set verify_ssl: false for self-signed BMC certificates, or install the BMC CA)", err))
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return resilience.Timeout(fmt.Errorf("request timed out: %w", err))
	}
	return resilience.Transient(fmt.Errorf("connection error: %w", err))
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
