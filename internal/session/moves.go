package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
	"github.com/park285/Cheese-Lichess-board/internal/notation"
	"github.com/park285/Cheese-Lichess-board/internal/obslog"
)

const archiveTimeout = 10 * time.Second

// submit applies a local move optimistically and sends it to the server.
func (c *Controller) submit(raw string) {
	if c.state != InProgress || c.g == nil {
		c.notify("game.not_started", nil)
		return
	}
	g := c.g
	uci := strings.ToLower(strings.TrimSpace(raw))
	mv, err := notation.DecodeUCI(uci)
	if err != nil {
		c.notify("move.malformed", map[string]any{"Move": raw})
		return
	}
	if g.local == 0 {
		c.notify("game.side_pending", nil)
		return
	}
	if g.turn != g.local || g.pending != nil {
		c.notify("move.not_your_turn", nil)
		return
	}
	piece := g.board.At(mv.From)
	if piece.IsEmpty() {
		name, _ := notation.CoordinateToSquare(mv.From)
		c.notify("move.empty_source", map[string]any{"Square": name})
		return
	}
	if side, _ := piece.Side(); side != g.local {
		c.notify("move.not_your_piece", nil)
		return
	}
	if side, ok := g.board.At(mv.To).Side(); ok && side == g.local {
		c.notify("move.cannot_move_there", nil)
		return
	}

	prev := &pendingMove{
		uci:      uci,
		board:    g.board,
		turn:     g.turn,
		moves:    g.moves,
		lastMove: g.lastMove,
	}
	if err := mv.Apply(&g.board); err != nil {
		c.notify("move.malformed", map[string]any{"Move": raw})
		return
	}
	g.turn = g.turn.Opposite()
	g.moves = appendMove(g.moves, uci)
	g.lastMove = uci
	g.selection = nil
	g.pending = prev
	obslog.L().Info("move_submit", zap.String("game_id", g.id), zap.String("move", uci), zap.Int("ply", len(g.moves)))
	c.render()

	gen, ctx, id := c.gen, c.ctx, g.id
	go func() {
		err := c.api.MakeMove(ctx, id, uci)
		c.post(func() { c.onMoveResult(gen, uci, err) })
	}()
}

func (c *Controller) onMoveResult(gen uint64, uci string, err error) {
	if gen != c.gen || c.g == nil {
		return
	}
	g := c.g
	if err == nil {
		if c.metrics != nil {
			c.metrics.MoveSubmitted("accepted")
		}
		if g.pending != nil && g.pending.uci == uci {
			g.pending = nil
			c.render()
		}
		return
	}

	if c.metrics != nil {
		c.metrics.MoveSubmitted("rejected")
	}
	obslog.L().Warn("move_rejected", zap.String("game_id", g.id), zap.String("move", uci), zap.Error(err))
	if c.state != InProgress || g.pending == nil || g.pending.uci != uci {
		return
	}
	p := g.pending
	g.board, g.turn, g.moves, g.lastMove = p.board, p.turn, p.moves, p.lastMove
	g.pending = nil
	c.render()
	c.notify("move.rejected", map[string]any{"Move": uci})
}

func (c *Controller) onEvent(gen uint64, ev lichess.Event) {
	if gen != c.gen || c.g == nil {
		return
	}
	if c.metrics != nil {
		c.metrics.StreamEvent(ev.Type)
	}
	switch ev.Type {
	case lichess.EventGameFull:
		c.applyFull(ev.Full)
	case lichess.EventGameState:
		c.applyState(*ev.State)
	case lichess.EventChatLine:
		if ev.Chat != nil {
			obslog.L().Debug("stream_chat", zap.String("game_id", c.g.id), zap.String("username", ev.Chat.Username), zap.String("text", ev.Chat.Text))
		}
	default:
		obslog.L().Debug("stream_event_ignored", zap.String("game_id", c.g.id), zap.String("type", ev.Type))
	}
}

func (c *Controller) applyFull(full *lichess.GameFull) {
	if full == nil || c.state != InProgress {
		return
	}
	g := c.g
	if fen := strings.TrimSpace(full.InitialFen); fen != "" && fen != "startpos" {
		g.initialFEN = fen
	}
	if g.local == 0 {
		switch {
		case full.White.IsAI():
			g.local = board.Black
		case full.Black.IsAI():
			g.local = board.White
		}
		if g.local != 0 {
			obslog.L().Info("game_side_resolved", zap.String("game_id", g.id), zap.String("local_side", g.local.String()))
			c.render()
			c.notify("game.side_resolved", map[string]any{"Side": g.local.String()})
		}
	}
	c.applyState(full.State)
}

// applyState folds one server state into the local session. The server's move
// list is authoritative: a single new token is applied incrementally, and the
// result is then checked against a full replay which wins on mismatch.
func (c *Controller) applyState(st lichess.GameState) {
	if c.state != InProgress {
		return
	}
	g := c.g
	tokens := st.MoveList()
	if isTerminal(st.Status) {
		c.end(st, tokens)
		return
	}

	changed := false
	switch {
	case g.pending != nil && equalMoves(tokens, g.pending.moves):
		// 대기 중인 로컬 수 이전의 서버 상태
		return
	case len(tokens) == len(g.moves)+1 && hasPrefix(tokens, g.moves):
		tok := tokens[len(tokens)-1]
		mv, err := notation.DecodeUCI(tok)
		if err != nil {
			c.desync(tok, err)
			return
		}
		if err := mv.Apply(&g.board); err != nil {
			c.desync(tok, err)
			return
		}
		g.turn = g.turn.Opposite()
		g.moves = appendMove(g.moves, tok)
		g.lastMove = tok
		g.pending = nil
		changed = true
	case equalMoves(tokens, g.moves):
		if g.pending != nil {
			g.pending = nil
			changed = true
		}
	}

	b, turn, err := replay(g.initialFEN, tokens)
	if err != nil {
		c.desync(lastToken(tokens), err)
		if changed {
			c.render()
		}
		return
	}
	if b != g.board || turn != g.turn || !equalMoves(tokens, g.moves) {
		obslog.L().Info("board_reconciled", zap.String("game_id", g.id), zap.Int("server_ply", len(tokens)), zap.Int("local_ply", len(g.moves)))
		g.board, g.turn = b, turn
		g.moves = append([]string(nil), tokens...)
		g.lastMove = lastToken(tokens)
		g.pending = nil
		changed = true
	}
	if changed {
		c.render()
	}
}

// end moves the session to Ended without touching the board.
func (c *Controller) end(st lichess.GameState, tokens []string) {
	g := c.g
	c.state = Ended
	g.status = st.Status
	g.winner = st.Winner
	g.selection = nil
	g.pending = nil
	c.stopStream()
	if c.metrics != nil {
		c.metrics.GameEnded(st.Status)
	}
	obslog.L().Info("game_end",
		zap.String("game_id", g.id),
		zap.String("status", st.Status),
		zap.String("winner", st.Winner),
		zap.Int("ply", len(tokens)),
	)
	c.render()
	c.notifyEnd(st.Status, st.Winner)

	moves := tokens
	if len(moves) == 0 {
		moves = g.moves
	}
	c.archive(Result{
		GameID:     g.id,
		SessionID:  g.sessionID,
		LocalSide:  g.local,
		Level:      c.level,
		Status:     st.Status,
		Winner:     st.Winner,
		InitialFEN: g.initialFEN,
		Moves:      append([]string(nil), moves...),
		StartedAt:  g.startedAt,
		EndedAt:    time.Now(),
	})
}

func (c *Controller) notifyEnd(status, winner string) {
	key := "game.end." + strings.ToLower(status)
	if !c.cat.Has(key) {
		key = "game.end.default"
	}
	text := c.cat.Text(key, nil)
	if resultKey := resultKey(c.g.local, status, winner); resultKey != "" {
		text += " " + c.cat.Text(resultKey, nil)
	}
	obslog.L().Debug("notice", zap.String("key", key), zap.String("game_id", c.g.id))
	c.obs.Notify(Notice{Key: key, Text: text, GameID: c.g.id})
}

// resultKey picks the outcome suffix. 무승부에는 winner가 비어 온다.
func resultKey(local board.Side, status, winner string) string {
	w, ok := board.ParseSide(winner)
	if !ok {
		switch strings.ToLower(status) {
		case "draw", "stalemate":
			return "game.result.draw"
		}
		return ""
	}
	if local == 0 {
		return ""
	}
	if w == local {
		return "game.result.won"
	}
	return "game.result.lost"
}

func (c *Controller) archive(r Result) {
	if c.archiver == nil {
		return
	}
	ctx := context.WithoutCancel(c.ctx)
	go func() {
		actx, cancel := context.WithTimeout(ctx, archiveTimeout)
		defer cancel()
		if err := c.archiver.SaveResult(actx, r); err != nil {
			obslog.L().Error("game_archive_error", zap.String("game_id", r.GameID), zap.String("status", r.Status), zap.Error(err))
			return
		}
		obslog.L().Info("game_archive", zap.String("game_id", r.GameID), zap.String("status", r.Status))
	}()
}

func (c *Controller) desync(token string, err error) {
	g := c.g
	obslog.L().Warn("stream_move_undecodable", zap.String("game_id", g.id), zap.String("move", token), zap.Error(err))
	if g.desyncNoticed {
		return
	}
	g.desyncNoticed = true
	c.notify("sync.desync", nil)
}

// encodeTapMove builds the UCI string for a tap-made move. Pawns reaching the
// last rank are promoted to a queen.
func encodeTapMove(p board.Piece, from, to board.Square) string {
	uci, err := notation.EncodeMove(from.Row, from.Col, to.Row, to.Col)
	if err != nil {
		return ""
	}
	if p.Kind() == 'p' {
		side, _ := p.Side()
		if (side == board.White && to.Row == 0) || (side == board.Black && to.Row == board.Size-1) {
			uci += "q"
		}
	}
	return uci
}

// isTerminal reports whether a stream status ends the game. Lichess uses
// "created" and "started" for live games; everything else is final.
func isTerminal(status string) bool {
	switch status {
	case "", "created", "started":
		return false
	default:
		return true
	}
}

func appendMove(moves []string, mv string) []string {
	out := make([]string, len(moves), len(moves)+1)
	copy(out, moves)
	return append(out, mv)
}

func equalMoves(a, b []string) bool {
	return len(a) == len(b) && hasPrefix(a, b)
}

func hasPrefix(moves, prefix []string) bool {
	if len(prefix) > len(moves) {
		return false
	}
	for i := range prefix {
		if moves[i] != prefix[i] {
			return false
		}
	}
	return true
}

func lastToken(moves []string) string {
	if len(moves) == 0 {
		return ""
	}
	return moves[len(moves)-1]
}
