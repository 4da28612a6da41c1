package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
	"github.com/park285/Cheese-Lichess-board/internal/msgcat"
	"github.com/park285/Cheese-Lichess-board/internal/obslog"
)

var ErrClosed = errors.New("session: controller closed")

// Controller owns one game session at a time. All state lives on the Run
// goroutine; public methods only enqueue work, and network results are posted
// back to the same queue before they touch the board.
type Controller struct {
	api      API
	obs      Observer
	metrics  Metrics
	archiver Archiver
	cat      *msgcat.Catalog
	level    int

	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Run goroutine only.
	ctx   context.Context
	state State
	gen   uint64
	g     *game
}

type game struct {
	id         string
	sessionID  string
	initialFEN string

	board    board.Board
	turn     board.Side
	local    board.Side
	moves    []string
	lastMove string

	selection *board.Square
	pending   *pendingMove

	status    string
	winner    string
	startedAt time.Time

	desyncNoticed bool
	cancelStream  context.CancelFunc
}

// pendingMove is an optimistic local move awaiting the server's answer,
// with everything needed to undo it.
type pendingMove struct {
	uci      string
	board    board.Board
	turn     board.Side
	moves    []string
	lastMove string
}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.obs = o
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

func WithCatalog(cat *msgcat.Catalog) Option {
	return func(c *Controller) {
		if cat != nil {
			c.cat = cat
		}
	}
}

// WithLevel sets the Lichess AI strength (1-8) used for new games.
func WithLevel(level int) Option {
	return func(c *Controller) {
		if level >= 1 && level <= 8 {
			c.level = level
		}
	}
}

func New(api API, opts ...Option) *Controller {
	c := &Controller{
		api:   api,
		obs:   Observers(nil),
		level: 1,
		inbox: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cat == nil {
		c.cat = msgcat.MustDefault()
	}
	return c
}

// Run processes session work until ctx is cancelled or Close is called.
// The game stream and any in-flight requests are cancelled on return.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx
	defer close(c.done)
	defer c.stopStream()

	c.render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// StartGame requests a new game against the AI. Ignored with a notice while a game is running.
func (c *Controller) StartGame() { c.post(c.startGame) }

// Tap handles a click on grid cell (row, col); row 0 is rank 8.
func (c *Controller) Tap(row, col int) {
	c.post(func() { c.tap(board.Square{Row: row, Col: col}) })
}

// SubmitMove plays a UCI move typed by the user ("e2e4", "e7e8q").
func (c *Controller) SubmitMove(uci string) {
	c.post(func() { c.submit(uci) })
}

func (c *Controller) Resign() { c.post(c.resign) }

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case c.inbox <- func() { reply <- c.snapshot() }:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrClosed
	}
}

func (c *Controller) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) startGame() {
	if c.state == AwaitingStart || c.state == InProgress {
		c.notify("game.in_progress", nil)
		return
	}
	c.stopStream()
	c.gen++
	gen, ctx, level := c.gen, c.ctx, c.level
	c.state = AwaitingStart
	c.g = nil
	c.render()
	c.notify("game.starting", map[string]any{"Level": level})

	go func() {
		g, err := c.api.ChallengeAI(ctx, lichess.ChallengeAIRequest{Level: level})
		c.post(func() { c.onStarted(gen, g, err) })
	}()
}

func (c *Controller) onStarted(gen uint64, resp *lichess.Game, err error) {
	if gen != c.gen || c.state != AwaitingStart {
		return
	}
	if err != nil {
		obslog.L().Warn("game_start_error", zap.Int("level", c.level), zap.Error(err))
		c.failStart("game.start_failed", nil)
		return
	}
	if resp.Status.Name != "started" {
		obslog.L().Warn("game_start_rejected", zap.String("game_id", resp.ID), zap.String("status", resp.Status.Name))
		c.failStart("game.start_rejected", map[string]any{"Status": resp.Status.Name})
		return
	}
	b, turn, perr := board.Parse(resp.FEN)
	if perr != nil {
		obslog.L().Warn("game_start_bad_fen", zap.String("game_id", resp.ID), zap.String("fen", resp.FEN), zap.Error(perr))
		c.failStart("game.start_failed", nil)
		return
	}
	local, _ := board.ParseSide(resp.Player)

	streamCtx, cancel := context.WithCancel(c.ctx)
	c.g = &game{
		id:           resp.ID,
		sessionID:    uuid.NewString(),
		initialFEN:   normalizeInitialFEN(resp.FEN),
		board:        b,
		turn:         turn,
		local:        local,
		startedAt:    time.Now(),
		cancelStream: cancel,
	}
	c.state = InProgress
	if c.metrics != nil {
		c.metrics.GameStarted("ok")
	}
	obslog.L().Info("game_start",
		zap.String("game_id", resp.ID),
		zap.String("session_id", c.g.sessionID),
		zap.Int("level", c.level),
		zap.String("local_side", local.String()),
	)
	c.render()
	if local != 0 {
		c.notify("game.started", map[string]any{"Side": local.String()})
	} else {
		c.notify("game.side_pending", nil)
	}
	c.follow(streamCtx, gen, resp.ID)
}

func (c *Controller) failStart(key string, data any) {
	c.state = NoGame
	if c.metrics != nil {
		c.metrics.GameStarted("error")
	}
	c.render()
	c.notify(key, data)
}

// follow starts the single stream reader for the game tagged gen.
// 이전 세대의 이벤트는 onEvent에서 버려진다.
func (c *Controller) follow(ctx context.Context, gen uint64, gameID string) {
	go func() {
		err := c.api.FollowGame(ctx, gameID, func(ev lichess.Event) error {
			if !c.post(func() { c.onEvent(gen, ev) }) {
				return ErrClosed
			}
			return nil
		})
		c.post(func() { c.onStreamEnd(gen, err) })
	}()
}

func (c *Controller) onStreamEnd(gen uint64, err error) {
	if gen != c.gen || c.g == nil || c.state != InProgress {
		return
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	obslog.L().Error("stream_lost", zap.String("game_id", c.g.id), zap.Error(err))
	c.notify("stream.lost", nil)
}

func (c *Controller) stopStream() {
	if c.g != nil && c.g.cancelStream != nil {
		c.g.cancelStream()
		c.g.cancelStream = nil
	}
}

func (c *Controller) tap(sq board.Square) {
	if c.state != InProgress || c.g == nil {
		c.notify("game.not_started", nil)
		return
	}
	if !sq.Valid() {
		return
	}
	g := c.g
	if g.local == 0 {
		c.notify("game.side_pending", nil)
		return
	}
	myTurn := g.turn == g.local && g.pending == nil
	piece := g.board.At(sq)
	side, occupied := piece.Side()
	own := occupied && side == g.local

	if g.selection == nil {
		switch {
		case !own:
			c.notify("move.not_your_piece", nil)
		case !myTurn:
			c.notify("move.not_your_turn", nil)
		default:
			g.selection = &sq
			c.render()
		}
		return
	}

	from := *g.selection
	if from == sq {
		g.selection = nil
		c.render()
		return
	}
	if own {
		if !myTurn {
			c.notify("move.cannot_move_there", nil)
			return
		}
		g.selection = &sq
		c.render()
		return
	}

	g.selection = nil
	uci := encodeTapMove(g.board.At(from), from, sq)
	if uci == "" {
		c.render()
		return
	}
	c.submit(uci)
}

func (c *Controller) resign() {
	if c.state != InProgress || c.g == nil {
		c.notify("game.not_started", nil)
		return
	}
	gen, ctx, id := c.gen, c.ctx, c.g.id
	obslog.L().Info("game_resign", zap.String("game_id", id))
	go func() {
		if err := c.api.Resign(ctx, id); err != nil {
			c.post(func() {
				if gen != c.gen || c.state != InProgress {
					return
				}
				obslog.L().Warn("game_resign_error", zap.String("game_id", id), zap.Error(err))
				c.notify("game.resign_failed", nil)
			})
		}
	}()
}

func (c *Controller) render() {
	c.obs.Render(c.snapshot())
}

func (c *Controller) notify(key string, data any) {
	n := Notice{Key: key, Text: c.cat.Text(key, data)}
	if c.g != nil {
		n.GameID = c.g.id
	}
	obslog.L().Debug("notice", zap.String("key", key), zap.String("game_id", n.GameID))
	c.obs.Notify(n)
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{State: c.state, Level: c.level}
	g := c.g
	if g == nil {
		s.Board = board.Start()
		s.Turn = board.White
		return s
	}
	s.GameID = g.id
	s.SessionID = g.sessionID
	s.Board = g.board
	s.Turn = g.turn
	s.LocalSide = g.local
	if g.selection != nil {
		sel := *g.selection
		s.Selection = &sel
	}
	s.Moves = append([]string(nil), g.moves...)
	s.LastMove = g.lastMove
	if g.pending != nil {
		s.Pending = g.pending.uci
	}
	s.Status = g.status
	s.Winner = g.winner
	return s
}
