package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Lichess-board/internal/obslog"
)

const publishTimeout = 2 * time.Second

// RedisPublisher mirrors frames to Redis pub/sub on "<prefix>:<gameId>".
// Frames without a game id are dropped. Publishing happens on a worker
// goroutine so the session never waits on Redis.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
	queue  chan Frame

	closeOnce sync.Once
	done      chan struct{}
}

func NewRedisPublisher(rdb *redis.Client, prefix string, buffer int) *RedisPublisher {
	if buffer < 1 {
		buffer = 64
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "lichess:feed"
	}
	p := &RedisPublisher{
		rdb:    rdb,
		prefix: prefix,
		queue:  make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Channel returns the pub/sub channel for a game.
func (p *RedisPublisher) Channel(gameID string) string {
	return p.prefix + ":" + gameID
}

func (p *RedisPublisher) Publish(f Frame) {
	if f.GameID == "" {
		return
	}
	select {
	case p.queue <- f:
	default:
		obslog.L().Warn("feed_redis_queue_full", zap.String("game_id", f.GameID), zap.String("kind", f.Kind))
	}
}

// Close stops accepting frames and waits for queued ones to be sent.
func (p *RedisPublisher) Close() {
	p.closeOnce.Do(func() { close(p.queue) })
	<-p.done
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for f := range p.queue {
		payload, err := json.Marshal(f)
		if err != nil {
			obslog.L().Warn("feed_redis_marshal_failed", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = p.rdb.Publish(ctx, p.Channel(f.GameID), payload).Err()
		cancel()
		if err != nil {
			obslog.L().Warn("feed_redis_publish_failed",
				zap.String("game_id", f.GameID),
				zap.Error(err),
			)
		}
	}
}

// ParseRedisURL converts redis://[:password@]host:port/db into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported redis scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("redis url missing host")
	}

	db := 0
	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		n, err := strconv.Atoi(path)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", path, err)
		}
		db = n
	}

	opts := &redis.Options{Addr: u.Host, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	return opts, nil
}
