package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
	"github.com/park285/Cheese-Lichess-board/internal/notation"
	"github.com/park285/Cheese-Lichess-board/internal/obslog"
	"github.com/park285/Cheese-Lichess-board/internal/render"
)

// lichesscheck verifies the token against /api/account and, when
// LICHESS_GAME_ID is set, prints the game stream for a short window.
func main() {
	token := strings.TrimSpace(os.Getenv("LICHESS_TOKEN"))
	baseURL := strings.TrimSpace(os.Getenv("LICHESS_BASE_URL"))
	gameID := strings.TrimSpace(os.Getenv("LICHESS_GAME_ID"))
	if baseURL == "" {
		baseURL = "https://lichess.org"
	}
	if token == "" {
		log.Fatal("LICHESS_TOKEN is required")
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v", err)
	}
	defer obslog.Sync()

	client := lichess.NewClient(baseURL, token,
		lichess.WithTimeout(8*time.Second),
		lichess.WithStreamRetries(1),
		lichess.WithLogger(obslog.L()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	acct, err := client.Account(ctx)
	if err != nil {
		log.Printf("/api/account error: %v", err)
	} else {
		log.Printf("/api/account ok: id=%s username=%s title=%s", acct.ID, acct.Username, acct.Title)
	}

	if gameID == "" {
		log.Println("LICHESS_GAME_ID not set; skipping stream check")
		return
	}

	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	initial := ""
	err = client.StreamGame(sctx, gameID, func(ev lichess.Event) error {
		switch ev.Type {
		case lichess.EventGameFull:
			initial = ev.Full.InitialFen
			fmt.Printf("gameFull id=%s white=%s black=%s\n", ev.Full.ID, playerName(ev.Full.White), playerName(ev.Full.Black))
		case lichess.EventChatLine:
			fmt.Printf("chat %s: %s\n", ev.Chat.Username, ev.Chat.Text)
			return nil
		case lichess.EventGameState:
		default:
			fmt.Printf("event %s\n", ev.Type)
			return nil
		}
		if ev.State == nil {
			return nil
		}
		moves := ev.State.MoveList()
		fmt.Printf("state status=%s moves=%d\n", ev.State.Status, len(moves))
		if b, ok := position(initial, moves); ok {
			fmt.Print(render.ASCII(b, false))
		}
		return nil
	})
	switch {
	case err == nil, errors.Is(err, context.DeadlineExceeded):
		log.Println("stream check done")
	default:
		log.Printf("stream error: %v", err)
	}
}

func playerName(p lichess.Player) string {
	if p.IsAI() {
		return fmt.Sprintf("AI level %d", p.AILevel)
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// position plays moves onto the initial placement with the plain board
// model. Castling rooks and en passant captures are not tracked.
func position(initialFEN string, moves []string) (board.Board, bool) {
	fen := strings.TrimSpace(initialFEN)
	if fen == "" || fen == "startpos" {
		fen = board.StartFEN
	}
	b, _, err := board.Parse(fen)
	if err != nil {
		return board.Board{}, false
	}
	for _, tok := range moves {
		mv, err := notation.DecodeUCI(tok)
		if err != nil {
			return b, true
		}
		if err := mv.Apply(&b); err != nil {
			return b, true
		}
	}
	return b, true
}
