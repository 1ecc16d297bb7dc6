// Package client is a thin HTTP client for the remote content API. Every
// response is decoded from the {success, data|error, pagination} envelope;
// failures come back as ErrTransport or *EnvelopeError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/jmcleod/lectern/internal/uuid"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 4 << 20
)

// TokenSource supplies the current access token. An empty token sends an
// unauthenticated request.
type TokenSource interface {
	AccessToken() string
}

// RefreshFunc renews the access token. It reports whether a new token is
// available in the TokenSource.
type RefreshFunc func(ctx context.Context) bool

// Client talks to the remote content API.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	refresh RefreshFunc
}

// Option configures the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets where access tokens are read from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithRateLimit caps outgoing requests to perSecond with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the structured logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "client")
	}
}

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: defaultTimeout},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetRefresher registers the hook invoked on 401 responses and before
// requests whose access token has already expired. The auth manager is
// constructed after the client, so this is a setter rather than an Option.
func (c *Client) SetRefresher(fn RefreshFunc) {
	c.mu.Lock()
	c.refresh = fn
	c.mu.Unlock()
}

func (c *Client) refresher() RefreshFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresh
}

func (c *Client) accessToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// token overrides the TokenSource when set.
	token string
	// noRefresh marks auth endpoints, which must never recurse into refresh.
	noRefresh bool
}

// do performs req and decodes the body into out.
func (c *Client) do(ctx context.Context, req request, out result) error {
	refresh := c.refresher()
	if req.noRefresh {
		refresh = nil
	}

	if refresh != nil && req.token == "" {
		if tok := c.accessToken(); tok != "" && TokenExpired(tok, c.now()) {
			c.logger.DebugContext(ctx, "access token expired, refreshing before request", "path", req.path)
			refresh(ctx)
		}
	}

	status, err := c.send(ctx, req, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && refresh != nil {
		if !refresh(ctx) {
			return envelopeError(status, out)
		}
		if status, err = c.send(ctx, req, out); err != nil {
			return err
		}
	}
	if status == http.StatusNoContent {
		return nil
	}
	if status < 200 || status > 299 || !out.ok() {
		return envelopeError(status, out)
	}
	return nil
}

func envelopeError(status int, out result) error {
	msg := out.message()
	if msg == "" && status >= 400 {
		msg = strings.ToLower(http.StatusText(status))
	}
	return &EnvelopeError{StatusCode: status, Message: msg}
}

// send performs one HTTP round trip and returns the response status.
func (c *Client) send(ctx context.Context, req request, out result) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.method, req.path, err)
		}
	}

	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	token := req.token
	if token == "" {
		token = c.accessToken()
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.method, req.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s %s: %w", ErrTransport, req.method, req.path, err)
	}
	c.logger.DebugContext(ctx, "api request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", c.now().Sub(start)),
	)

	out.reset()
	if len(bytes.TrimSpace(data)) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 && resp.StatusCode != http.StatusNoContent {
			return 0, fmt.Errorf("%w: %s %s: empty response body", ErrTransport, req.method, req.path)
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 400 {
			// Error pages from proxies are not envelopes; keep the status.
			return resp.StatusCode, nil
		}
		return 0, fmt.Errorf("%w: decoding %s %s: %w", ErrTransport, req.method, req.path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) check(in any) error {
	if err := c.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidInput, kind)
	}
	return nil
}
