package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

func TestReplayMovesSAN(t *testing.T) {
	got, _ := replayMoves("startpos", []string{"e2e4", "e7e5", "g1f3", "b8c6"})
	want := []string{"e4", "e5", "Nf3", "Nc6"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("san = %v, want %v", got, want)
	}
}

func TestReplayMovesStopsAtIllegal(t *testing.T) {
	got, _ := replayMoves("", []string{"e2e4", "e2e4", "g1f3"})
	if len(got) != 1 || got[0] != "e4" {
		t.Fatalf("san = %v", got)
	}
	if got, _ := replayMoves("not a fen", []string{"e2e4"}); got != nil {
		t.Fatalf("expected nil for bad fen, got %v", got)
	}
}

func TestMapResultToPGN(t *testing.T) {
	cases := []struct {
		winner, status, want string
	}{
		{"white", "mate", "1-0"},
		{"Black", "resign", "0-1"},
		{"", "draw", "1/2-1/2"},
		{"", "stalemate", "1/2-1/2"},
		{"", "aborted", "*"},
	}
	for _, tc := range cases {
		if got := mapResultToPGN(tc.winner, tc.status); got != tc.want {
			t.Fatalf("mapResultToPGN(%q,%q) = %q, want %q", tc.winner, tc.status, got, tc.want)
		}
	}
}

func TestBuildPGN(t *testing.T) {
	res := session.Result{
		GameID:     "abc\"123",
		LocalSide:  board.Black,
		Level:      3,
		Status:     "resign",
		Winner:     "white",
		InitialFEN: board.StartFEN,
		EndedAt:    time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}
	pgn := buildPGN(res, []string{"e4", "e5", "Nf3"}, Opening{Code: "C40", Title: "King's Knight Opening"})
	for _, want := range []string{
		"[Site \"https://lichess.org/abc'123\"]",
		"[Date \"2026.03.04\"]",
		"[White \"Lichess AI level 3\"]",
		"[Black \"You\"]",
		"[Termination \"resign\"]",
		"[Result \"1-0\"]",
		"[ECO \"C40\"]",
		"1. e4 e5 2. Nf3 1-0",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if strings.Contains(pgn, "[SetUp") {
		t.Fatalf("standard start should not carry a FEN tag:\n%s", pgn)
	}
}

func TestBuildPGNCustomStart(t *testing.T) {
	fen := "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	pgn := buildPGN(session.Result{GameID: "g", Level: 1, InitialFEN: fen}, nil, Opening{})
	if !strings.Contains(pgn, "[FEN \""+fen+"\"]") || !strings.HasSuffix(pgn, "*") {
		t.Fatalf("unexpected pgn:\n%s", pgn)
	}
}

func TestMovesJSONNeverNull(t *testing.T) {
	for _, in := range [][]string{nil, {}} {
		got, err := movesJSON(in)
		if err != nil {
			t.Fatalf("movesJSON(%v): %v", in, err)
		}
		if got != "[]" {
			t.Fatalf("movesJSON(%#v) = %q, want []", in, got)
		}
	}
	got, err := movesJSON([]string{"e2e4", "e7e5"})
	if err != nil || got != `["e2e4","e7e5"]` {
		t.Fatalf("movesJSON = %q, %v", got, err)
	}
}

func TestSaveResultNilRepository(t *testing.T) {
	var r *Repository
	if err := r.SaveResult(context.Background(), session.Result{}); err != nil {
		t.Fatalf("nil repository should be a no-op: %v", err)
	}
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository("  "); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestReplayMovesOpening(t *testing.T) {
	san, op := replayMoves("startpos", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	if len(san) != 5 || san[4] != "Bb5" {
		t.Fatalf("san = %v", san)
	}
	if op.Code == "" || op.Title == "" {
		t.Fatalf("expected an ECO label for the Ruy Lopez, got %+v", op)
	}
	if _, op := replayMoves("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1", []string{"e2e4"}); op.Code != "" {
		t.Fatalf("custom start should not be classified: %+v", op)
	}
}
