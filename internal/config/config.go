package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	LichessToken   string
	LichessBaseURL string

	BotLevel         int
	RequestTimeout   time.Duration
	StreamMaxRetries int
	StreamIdle       time.Duration

	MessagesDir string

	FeedAddr          string
	FeedChannelPrefix string

	RedisURL    string
	DatabaseURL string
}

const (
	minBotLevel = 1
	maxBotLevel = 8
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LichessBaseURL:    "https://lichess.org",
		BotLevel:          1,
		RequestTimeout:    10 * time.Second,
		StreamMaxRetries:  5,
		StreamIdle:        20 * time.Second,
		FeedChannelPrefix: "lichess:feed",
	}

	cfg.LichessToken = strings.TrimSpace(os.Getenv("LICHESS_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("LICHESS_BASE_URL")); v != "" {
		cfg.LichessBaseURL = strings.TrimRight(v, "/")
	}

	if v := strings.TrimSpace(os.Getenv("BOT_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= minBotLevel && n <= maxBotLevel {
			cfg.BotLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("STREAM_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.StreamMaxRetries = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("STREAM_IDLE_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.StreamIdle = time.Duration(n) * time.Second
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	// Spectator feed (optional)
	cfg.FeedAddr = strings.TrimSpace(os.Getenv("FEED_ADDR"))
	if v := strings.TrimSpace(os.Getenv("FEED_CHANNEL_PREFIX")); v != "" {
		cfg.FeedChannelPrefix = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if cfg.LichessToken == "" {
		return nil, errors.New("LICHESS_TOKEN is required")
	}
	return cfg, nil
}
