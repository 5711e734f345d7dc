package kube

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config configures the API server connection.
type Config struct {
	// Server is the API server base URL, e.g. "https://127.0.0.1:6443".
	Server string

	// Token is the bearer token, if any.
	Token string

	// TLS configures server verification and client certificates.
	TLS *tls.Config

	// Timeout bounds each call. Zero means the 50 second default.
	Timeout time.Duration
}

// APIError is a non-2xx response or a failed round trip to the API server.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("received %d response code from %q: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("failed %q call: %s", e.Endpoint, e.Message)
}

// Object is an untyped API object.
type Object = map[string]any

// List is an untyped API object list.
type List struct {
	Items []Object `json:"items"`
}

// Client is a minimal JSON round-tripper for the Kubernetes API. It knows
// nothing about resource schemas; Resource descriptors build the URIs.
type Client struct {
	server  string
	token   string
	timeout time.Duration
	hc      *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("kube: server URL is required")
	}
	if _, err := url.Parse(cfg.Server); err != nil {
		return nil, fmt.Errorf("kube: invalid server URL %q: %w", cfg.Server, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 50 * time.Second
	}

	transport := &http.Transport{TLSClientConfig: cfg.TLS}
	return &Client{
		server:  strings.TrimRight(cfg.Server, "/"),
		token:   cfg.Token,
		timeout: timeout,
		hc:      &http.Client{Transport: transport},
	}, nil
}

// Do performs one API call. body is JSON-encoded when non-nil; the response
// is decoded into out when non-nil. Non-2xx responses become APIError.
func (c *Client) Do(ctx context.Context, method, uri string, body, out any, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %q body: %w", uri, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+uri, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %q request: %w", uri, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &APIError{Endpoint: uri, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Endpoint: uri, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Endpoint: uri, Message: fmt.Sprintf("malformed response: %v", err)}
		}
	}
	return nil
}
