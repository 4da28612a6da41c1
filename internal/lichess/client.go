package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var (
	// ErrRemoteRequestFailed wraps every failed call: transport errors and non-2xx replies.
	ErrRemoteRequestFailed = errors.New("lichess: remote request failed")
	// ErrStreamDisconnected is returned once the game stream cannot be (re)opened.
	ErrStreamDisconnected = errors.New("lichess: game stream disconnected")
)

// APIError is a non-2xx reply. errors.Is(err, ErrRemoteRequestFailed) holds.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lichess api error: status=%d body=%s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return ErrRemoteRequestFailed }

// Metrics receives per-request timings and stream reconnects. Optional.
type Metrics interface {
	ObserveRequest(endpoint string, code int, d time.Duration)
	StreamReconnect()
}

type Client struct {
	baseURL string
	token   string
	http    *fasthttp.Client
	stream  *http.Client

	defaultTimeout time.Duration
	retryMax       int
	streamRetries  int
	streamIdle     time.Duration

	logger  *zap.Logger
	metrics Metrics
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithStreamRetries bounds reconnect attempts of FollowGame. Zero disables reconnects.
func WithStreamRetries(n int) Option {
	return func(c *Client) { c.streamRetries = n }
}

// WithStreamIdleTimeout drops a stream connection that delivers nothing, not even
// a keepalive, for d. The drop counts as a disconnect, so FollowGame reconnects.
// Zero disables the watchdog.
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.streamIdle = d }
}

func WithStreamHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.stream = h
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		token:          strings.TrimSpace(token),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		stream:         &http.Client{},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
		streamRetries:  5,
		streamIdle:     20 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChallengeAI starts a game against the Lichess AI. Not retried: a retry could open a second game.
func (c *Client) ChallengeAI(ctx context.Context, req ChallengeAIRequest) (*Game, error) {
	var g Game
	if err := c.doJSON(ctx, "challenge_ai", fasthttp.MethodPost, "/api/challenge/ai", req, &g, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(g.ID) == "" {
		return nil, fmt.Errorf("%w: challenge response without game id", ErrRemoteRequestFailed)
	}
	return &g, nil
}

// MakeMove submits a UCI move. A false ok flag counts as rejection.
func (c *Client) MakeMove(ctx context.Context, gameID, move string) error {
	path := "/api/bot/game/" + url.PathEscape(gameID) + "/move/" + url.PathEscape(move)
	var resp MoveResponse
	if err := c.doJSON(ctx, "move", fasthttp.MethodPost, path, nil, &resp, false); err != nil {
		return err
	}
	if !resp.OK {
		return &APIError{Status: http.StatusOK, Body: "move not accepted"}
	}
	return nil
}

func (c *Client) Resign(ctx context.Context, gameID string) error {
	path := "/api/bot/game/" + url.PathEscape(gameID) + "/resign"
	return c.doJSON(ctx, "resign", fasthttp.MethodPost, path, nil, nil, true)
}

// Account fetches the token owner; used to verify credentials.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var a Account
	if err := c.doJSON(ctx, "account", fasthttp.MethodGet, "/api/account", nil, &a, true); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) authHeader() string {
	if c.token == "" {
		return ""
	}
	return "Bearer " + c.token
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if auth := c.authHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRemoteRequestFailed, err)
		}
		started := time.Now()
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			c.observe(endpoint, 0, time.Since(started))
			lastErr = fmt.Errorf("%w: %v", ErrRemoteRequestFailed, err)
			if attempt == attempts {
				return lastErr
			}
			c.logger.Debug("lichess_retry", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		c.observe(endpoint, status, time.Since(started))
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("%w: decode response: %v", ErrRemoteRequestFailed, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = ErrRemoteRequestFailed
	}
	return lastErr
}

func (c *Client) observe(endpoint string, code int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(endpoint, code, d)
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
