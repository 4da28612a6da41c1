package lichess

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventHandler consumes stream events in arrival order. Returning an error stops the stream.
type EventHandler func(Event) error

// StreamGame opens the bot game stream once and delivers events until the body ends.
// A clean end of stream and transport failures both return ErrStreamDisconnected;
// cancellation returns ctx.Err().
func (c *Client) StreamGame(ctx context.Context, gameID string, fn EventHandler) error {
	_, err := c.streamOnce(ctx, gameID, fn)
	return err
}

// FollowGame keeps the stream open, reconnecting with backoff up to the configured
// retry bound. The attempt counter resets whenever a connection delivered an event.
func (c *Client) FollowGame(ctx context.Context, gameID string, fn EventHandler) error {
	attempt := 0
	for {
		delivered, err := c.streamOnce(ctx, gameID, fn)
		if err == nil || !errors.Is(err, ErrStreamDisconnected) {
			return err
		}
		if delivered > 0 {
			attempt = 0
		}
		attempt++
		if attempt > c.streamRetries {
			return err
		}
		c.logger.Warn("lichess_stream_reconnect",
			zap.String("game_id", gameID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if c.metrics != nil {
			c.metrics.StreamReconnect()
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, gameID string, fn EventHandler) (int, error) {
	// Lichess는 몇 초마다 keepalive 개행을 보낸다. 조용한 연결은 끊긴 것으로 본다.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idled atomic.Bool
	kick := func() {}
	if c.streamIdle > 0 {
		watchdog := time.AfterFunc(c.streamIdle, func() {
			idled.Store(true)
			cancel()
		})
		defer watchdog.Stop()
		kick = func() { watchdog.Reset(c.streamIdle) }
	}
	idleErr := func() error {
		c.logger.Warn("lichess_stream_idle",
			zap.String("game_id", gameID),
			zap.Duration("idle", c.streamIdle),
		)
		return fmt.Errorf("%w: no data for %s", ErrStreamDisconnected, c.streamIdle)
	}

	endpoint := c.baseURL + "/api/bot/game/stream/" + url.PathEscape(gameID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if auth := c.authHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	started := time.Now()
	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.observe("stream", 0, time.Since(started))
		if idled.Load() {
			return 0, idleErr()
		}
		return 0, fmt.Errorf("%w: %v", ErrStreamDisconnected, err)
	}
	defer resp.Body.Close()
	kick()
	c.observe("stream", resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
		if shouldRetryStatus(resp.StatusCode) {
			return 0, fmt.Errorf("%w: %v", ErrStreamDisconnected, apiErr)
		}
		return 0, apiErr
	}

	delivered := 0
	r := bufio.NewReader(resp.Body)
	for {
		line, readErr := r.ReadBytes('\n')
		if readErr == nil {
			kick()
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			ev, err := ParseEvent(line)
			if err != nil {
				c.logger.Warn("lichess_stream_bad_line",
					zap.String("game_id", gameID),
					zap.String("line", truncate(string(line), 256)),
					zap.Error(err),
				)
			} else {
				delivered++
				if err := fn(ev); err != nil {
					return delivered, err
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return delivered, ctx.Err()
			}
			if idled.Load() {
				return delivered, idleErr()
			}
			if errors.Is(readErr, io.EOF) {
				return delivered, fmt.Errorf("%w: stream closed by server", ErrStreamDisconnected)
			}
			return delivered, fmt.Errorf("%w: %v", ErrStreamDisconnected, readErr)
		}
	}
}
