package session

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/Cheese-Lichess-board/internal/board"
)

// replay rebuilds the authoritative position by playing moves from initialFEN.
// Unlike the single-step ApplyMove path it understands castling, en passant and promotion.
func replay(initialFEN string, moves []string) (board.Board, board.Side, error) {
	game, err := newGame(initialFEN)
	if err != nil {
		return board.Board{}, 0, err
	}
	for i, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return board.Board{}, 0, fmt.Errorf("replay move %d %q: %w", i+1, mv, err)
		}
	}
	return board.Parse(game.FEN())
}

func newGame(initialFEN string) (*nchess.Game, error) {
	fen := strings.TrimSpace(initialFEN)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("load initial fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}

// normalizeInitialFEN maps the stream's "startpos" marker onto a concrete FEN.
func normalizeInitialFEN(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return board.StartFEN
	}
	return fen
}
