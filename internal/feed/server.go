package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Lichess-board/internal/obslog"
	"github.com/park285/Cheese-Lichess-board/internal/render"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
)

// Server exposes the hub to spectators over HTTP.
type Server struct {
	hub      *Hub
	renderer *render.PNGRenderer
	metrics  http.Handler
	mux      *http.ServeMux
}

// NewServer wires the routes. metricsHandler may be nil.
func NewServer(hub *Hub, renderer *render.PNGRenderer, metricsHandler http.Handler) *Server {
	if renderer == nil {
		renderer = render.NewPNGRenderer()
	}
	s := &Server{hub: hub, renderer: renderer, metrics: metricsHandler, mux: http.NewServeMux()}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/board.png", s.handlePNG)
	s.mux.HandleFunc("/board.fen", s.handleFEN)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		s.mux.Handle("/metrics", metricsHandler)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	obslog.L().Info("feed_listen", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			obslog.L().Warn("feed_shutdown_failed", zap.Error(err))
			return err
		}
		return nil
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("feed_ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	frames, unsubscribe := s.hub.Subscribe(subscriberBuffer)
	defer unsubscribe()

	// Spectators never send; CloseRead handles control frames and cancels on disconnect.
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, f)
			cancel()
			if err != nil {
				obslog.L().Debug("feed_ws_write_failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		http.Error(w, "no board yet", http.StatusServiceUnavailable)
		return
	}
	data, err := s.renderer.RenderPNG(r.Context(), snap.Board, render.OptionsFor(snap))
	if err != nil {
		obslog.L().Warn("feed_png_failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) handleFEN(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		http.Error(w, "no board yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(snap.FEN()))
}
