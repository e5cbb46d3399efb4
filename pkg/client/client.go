package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRefreshLeeway = 60 * time.Second
)

// Client talks to the scene backend: the auth gateway, the scenes table and
// the export functions all hang off one base URL. It never holds a session;
// bearer tokens are passed in per call.
type Client struct {
	baseURL       string
	anonKey       string
	httpClient    *http.Client
	log           zerolog.Logger
	refreshLeeway time.Duration
	now           func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the request timeout of the client's own HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRefreshLeeway sets how close to expiry a token may get before
// CurrentSession refreshes it.
func WithRefreshLeeway(d time.Duration) Option {
	return func(c *Client) { c.refreshLeeway = d }
}

// New creates a backend client. anonKey is the project's public API key, sent
// as the apikey header on every request; it never authorizes a user action.
func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log:           zerolog.Nop(),
		refreshLeeway: defaultRefreshLeeway,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestOpts carries the per-call parts of a request.
type requestOpts struct {
	token  string
	header http.Header
}

func (c *Client) post(ctx context.Context, path string, body any, out any, ro requestOpts) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out, ro)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any, ro requestOpts) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if ro.token != "" {
		req.Header.Set("Authorization", "Bearer "+ro.token)
	}
	for k, vs := range ro.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("backend request failed")
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", c.now().Sub(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return parseHTTPError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// apiError covers the error bodies of the auth gateway ({msg, error_code} or
// {error, error_description}) and the table API ({code, message, hint}).
type apiError struct {
	Msg              string          `json:"msg"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
}

func parseHTTPError(status int, body []byte) *HTTPError {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) != nil {
		return &HTTPError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	msg := firstNonEmpty(apiErr.Msg, apiErr.ErrorDescription, apiErr.Message, apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	code := apiErr.ErrorCode
	if code == "" && len(apiErr.Code) > 0 {
		code = rawString(apiErr.Code)
	}
	return &HTTPError{StatusCode: status, Code: code, Message: msg}
}

// rawString unquotes a JSON string, or returns other JSON values as written.
func rawString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
