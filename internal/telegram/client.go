package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Bot API endpoint prefix; the token is appended directly.
const DefaultBaseURL = "https://api.telegram.org/bot"

const maxResponseBytes = 10 << 20

// Doer is the part of *http.Client the transport needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues authenticated GET requests against the Bot API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    Doer
	log     *slog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// WithDoer replaces the underlying HTTP client. The configured timeout still
// bounds every request through the request context.
func (c *Client) WithDoer(d Doer) *Client {
	c.http = d
	return c
}

// Endpoint returns the address of method: base URL and token concatenated,
// then joined with method as a path segment.
func (c *Client) Endpoint(method string) (string, error) {
	u, err := url.Parse(c.baseURL + c.token)
	if err != nil {
		return "", fmt.Errorf("telegram: parse base url: %w", redact(err, c.token))
	}
	u = u.JoinPath(strings.TrimLeft(method, "/"))
	return u.String(), nil
}

// Request performs GET {base}{token}/{method}?{params}. A 200 response body is
// returned verbatim as JSON; any other status yields a *StatusError.
func (c *Client) Request(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	endpoint, err := c.Endpoint(method)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		// the url carries the token, keep it out of the message
		return nil, fmt.Errorf("telegram: create %s request", method)
	}

	c.log.Debug("telegram request", "method", method, "params", len(params))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, redact(err, c.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("telegram request failed", "method", method, "status", resp.StatusCode)
		return nil, &StatusError{Method: method, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("telegram: decode %s response: invalid json", method)
	}
	return json.RawMessage(body), nil
}

// redact strips the token from errors produced by url parsing and the http
// client. The wrapped cause is kept when it does not mention the token.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) && !strings.Contains(ue.Err.Error(), token) {
		return &url.Error{Op: ue.Op, URL: strings.ReplaceAll(ue.URL, token, "<token>"), Err: ue.Err}
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
