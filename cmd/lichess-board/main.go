package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Lichess-board/internal/archive"
	appcfg "github.com/park285/Cheese-Lichess-board/internal/config"
	"github.com/park285/Cheese-Lichess-board/internal/feed"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
	"github.com/park285/Cheese-Lichess-board/internal/metrics"
	"github.com/park285/Cheese-Lichess-board/internal/msgcat"
	"github.com/park285/Cheese-Lichess-board/internal/obslog"
	"github.com/park285/Cheese-Lichess-board/internal/render"
	"github.com/park285/Cheese-Lichess-board/internal/session"
	"github.com/park285/Cheese-Lichess-board/internal/tui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("lichess-board: %v", err)
	}
}

func run() error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// The terminal belongs to the UI; logs go to the file only.
	logOpts := obslog.OptionsFromEnv()
	logOpts.Console = false
	if err := obslog.Init(logOpts); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("message catalog: %w", err)
	}

	collector := metrics.New()
	client := lichess.NewClient(cfg.LichessBaseURL, cfg.LichessToken,
		lichess.WithTimeout(cfg.RequestTimeout),
		lichess.WithStreamRetries(cfg.StreamMaxRetries),
		lichess.WithStreamIdleTimeout(cfg.StreamIdle),
		lichess.WithLogger(logger),
		lichess.WithMetrics(collector),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hubOpts []feed.HubOption
	hubOpts = append(hubOpts, feed.WithSubscriberGauge(collector.SetSpectators))

	if cfg.RedisURL != "" {
		opts, err := feed.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		pub := feed.NewRedisPublisher(rdb, cfg.FeedChannelPrefix, 64)
		defer pub.Close()
		hubOpts = append(hubOpts, feed.WithSink(pub))
		logger.Info("feed_redis_enabled", zap.String("prefix", cfg.FeedChannelPrefix))
	}
	hub := feed.NewHub(hubOpts...)

	sessOpts := []session.Option{
		session.WithCatalog(cat),
		session.WithLevel(cfg.BotLevel),
		session.WithMetrics(collector),
	}
	// The UI needs the controller, so it joins the observers once built.
	uiObs := &uiObserver{}
	sessOpts = append(sessOpts, session.WithObserver(session.Observers{hub, uiObs}))

	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("archive init: %w", err)
		}
		defer repo.Close()
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			return err
		}
		sessOpts = append(sessOpts, session.WithArchiver(repo))
		logger.Info("archive_enabled")
	}

	ctl := session.New(client, sessOpts...)
	ui := tui.New(ctl, stop)
	uiObs.ui = ui

	if cfg.FeedAddr != "" {
		srv := feed.NewServer(hub, render.NewPNGRenderer(), collector.Handler())
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.FeedAddr); err != nil {
				logger.Error("feed_server_error", zap.Error(err))
			}
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- ctl.Run(ctx) }()
	go func() {
		<-ctx.Done()
		ui.Stop()
	}()

	logger.Info("app_start", zap.Int("level", cfg.BotLevel), zap.String("base_url", cfg.LichessBaseURL))
	uiErr := ui.Run()
	stop()
	ctl.Close()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("session_stopped", zap.Error(err))
	}
	logger.Info("app_stop")
	return uiErr
}

type uiObserver struct{ ui *tui.App }

func (o *uiObserver) Render(s session.Snapshot) { o.ui.Render(s) }
func (o *uiObserver) Notify(n session.Notice)   { o.ui.Notify(n) }
