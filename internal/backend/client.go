// Package backend is the typed client for the catalog/cart/order REST API the
// storefront sits in front of. Response shapes are parsed here once and
// converted into domain types.
package backend

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

	"github.com/example/ec-storefront/pkg/retry"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 100 * time.Millisecond
	maxBodySize          = 4 << 20
)

var (
	ErrBaseURLRequired = errors.New("backend base URL is required")
	errEmptyBody       = errors.New("empty response body")
)

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	HTTPClient    *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	origin     string
	retry      retry.Config
}

// New creates a client for the API rooted at cfg.BaseURL, e.g.
// "http://localhost:8080/api".
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		origin:     u.Scheme + "://" + u.Host,
		retry: retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     retry.ExponentialBackoff(cfg.RetryBackoff),
			ShouldRetry: IsRetryable,
		},
	}, nil
}

// Origin is the scheme and host of the backend, against which relative image
// URLs resolve.
func (c *Client) Origin() string {
	return c.origin
}

// AbsoluteURL resolves a possibly relative image reference against the
// backend origin.
func (c *Client) AbsoluteURL(ref string) string {
	return absoluteURL(c.origin, ref)
}

func absoluteURL(origin, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	return origin + "/" + strings.TrimLeft(ref, "/")
}

type tokenKey struct{}

// WithToken attaches the signed-in user's backend token to ctx; calls made
// with that context send it as a bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// get performs an idempotent GET and retries transport failures and 5xx.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return retry.Do(ctx, c.retry, func() error {
		return c.do(ctx, op, http.MethodGet, path, query, nil, out)
	})
}

// do performs a single request. A nil out discards the response body; otherwise
// an empty body is a decode failure.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindDecode, Op: op, Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:    KindBackend,
			Op:      op,
			Status:  resp.StatusCode,
			Message: extractMessage(data),
		}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Cause: errEmptyBody}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Cause: err}
	}
	return nil
}

func idPath(format string, ids ...int64) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(format, args...)
}
