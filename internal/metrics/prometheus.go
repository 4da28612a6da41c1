package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the board client's Prometheus metrics on its own registry,
// so several collectors can coexist in one process (tests).
type Collector struct {
	reg *prometheus.Registry

	// Lichess API
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	streamReconnects prometheus.Counter
	streamEvents     *prometheus.CounterVec

	// Session
	gamesStarted *prometheus.CounterVec
	gamesEnded   *prometheus.CounterVec
	movesTotal   *prometheus.CounterVec

	// Spectator feed
	spectators prometheus.Gauge
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lichess_board_api_requests_total",
				Help: "Total number of Lichess API requests",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lichess_board_api_request_duration_seconds",
				Help:    "Duration of Lichess API requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		streamReconnects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "lichess_board_stream_reconnects_total",
				Help: "Total number of game stream reconnect attempts",
			},
		),
		streamEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lichess_board_stream_events_total",
				Help: "Total number of game stream events handled",
			},
			[]string{"type"},
		),
		gamesStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lichess_board_games_started_total",
				Help: "Total number of game start attempts",
			},
			[]string{"result"},
		),
		gamesEnded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lichess_board_games_ended_total",
				Help: "Total number of finished games by terminal status",
			},
			[]string{"status"},
		),
		movesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lichess_board_moves_submitted_total",
				Help: "Total number of submitted local moves",
			},
			[]string{"result"},
		),
		spectators: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "lichess_board_feed_spectators",
				Help: "Number of connected spectator websockets",
			},
		),
	}
}

// ObserveRequest records one Lichess API call. code 0 means a transport failure.
func (c *Collector) ObserveRequest(endpoint string, code int, d time.Duration) {
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	c.requestsTotal.WithLabelValues(endpoint, status).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) StreamReconnect() {
	c.streamReconnects.Inc()
}

func (c *Collector) StreamEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	c.streamEvents.WithLabelValues(kind).Inc()
}

// GameStarted records a start attempt; result is "ok" or "error".
func (c *Collector) GameStarted(result string) {
	c.gamesStarted.WithLabelValues(result).Inc()
}

func (c *Collector) GameEnded(status string) {
	c.gamesEnded.WithLabelValues(status).Inc()
}

// MoveSubmitted records a local move outcome: "accepted" or "rejected".
func (c *Collector) MoveSubmitted(result string) {
	c.movesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) SetSpectators(n int) {
	c.spectators.Set(float64(n))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
