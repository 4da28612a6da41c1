package archive

import (
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

// Opening is an ECO classification.
type Opening struct {
	Code  string
	Title string
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func ecoBookInstance() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// replayMoves returns the SAN moves and, for games from the standard start,
// the deepest matching ECO opening. Conversion stops at the first move the
// position rejects; the PGN then carries only the playable prefix.
func replayMoves(initialFEN string, moves []string) ([]string, Opening) {
	game, err := loadGame(initialFEN)
	if err != nil {
		return nil, Opening{}
	}
	out := make([]string, 0, len(moves))
	for _, uci := range moves {
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(strings.TrimSpace(uci)))
		if err != nil {
			break
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			break
		}
		out = append(out, san)
	}

	var op Opening
	if isStandardStart(initialFEN) && len(out) > 0 {
		if book := ecoBookInstance(); book != nil {
			if eco := book.Find(game.Moves()); eco != nil {
				op = Opening{Code: eco.Code(), Title: eco.Title()}
			}
		}
	}
	return out, op
}

func isStandardStart(fen string) bool {
	fen = strings.TrimSpace(fen)
	return fen == "" || fen == "startpos" || fen == board.StartFEN
}

func loadGame(initialFEN string) (*nchess.Game, error) {
	if isStandardStart(initialFEN) {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(strings.TrimSpace(initialFEN))
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

// mapResultToPGN picks the PGN result token. Lichess omits the winner on draws.
func mapResultToPGN(winner, status string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "draw", "stalemate":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(res session.Result, san []string, op Opening) string {
	var b strings.Builder
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	pgnResult := mapResultToPGN(res.Winner, res.Status)

	white, black := "You", fmt.Sprintf("Lichess AI level %d", res.Level)
	if res.LocalSide == board.Black {
		white, black = black, white
	}

	b.WriteString("[Event \"Casual game vs Lichess AI\"]\n")
	fmt.Fprintf(&b, "[Site \"https://lichess.org/%s\"]\n", sanitizePGN(res.GameID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(white))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(black))
	if !isStandardStart(res.InitialFEN) {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(res.InitialFEN))
	}
	if op.Code != "" {
		fmt.Fprintf(&b, "[ECO \"%s\"]\n", sanitizePGN(op.Code))
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(op.Title))
	}
	if status := strings.TrimSpace(res.Status); status != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(status)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	for i := 0; i < len(san); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, san[i])
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(san[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
