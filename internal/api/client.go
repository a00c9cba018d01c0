// Package api wraps the remote backend's REST surface. Every resource
// operation the client performs flows through this single chokepoint:
// no retries, no client-side timeout, no caching.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"homebudget/internal/log"
)

func init() {
	// The backend exchanges limit/amount as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	// ErrNetwork indicates a transport-level failure: no response was
	// received at all.
	ErrNetwork = errors.New("could not reach the server")

	// ErrUnauthorized indicates the backend rejected the bearer token.
	// Callers clear the session and route to login on this error.
	ErrUnauthorized = errors.New("unauthorized")
)

// genericMessage is the fallback when an error response body carries
// neither a message nor a detail field.
const genericMessage = "request failed"

// Error is a backend rejection carrying the server's own message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the backend at a fixed base origin.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a backend client. The underlying http.Client has no
// timeout: a hung call is surfaced by the UI's loading state, matching
// the backend contract of never cancelling in-flight requests.
func NewClient(baseURL string, logger *log.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger.WithComponent("api"),
	}
}

// do performs a JSON call against the backend. The payload is JSON
// encoded when present, the bearer token attached when non-empty, and
// the response body decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Backend unreachable",
			"method", method,
			"path", path,
			"error", err)
		return ErrNetwork
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, out); err != nil {
		if apiErr := (*Error)(nil); errors.As(err, &apiErr) {
			c.logger.WarnContext(ctx, "Backend rejected request",
				"method", method,
				"path", path,
				"status", apiErr.Status,
				"message", apiErr.Message)
		}
		return err
	}
	return nil
}

// decodeResponse consumes a backend response: on a non-success status
// it returns an *Error holding the server's message, otherwise it
// unmarshals the body into out (when non-nil).
func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrNetwork
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts a human-readable message from an error body,
// preferring "message", falling back to "detail", defaulting to a
// generic phrase.
func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Detail != "" {
			return envelope.Detail
		}
	}
	return genericMessage
}
