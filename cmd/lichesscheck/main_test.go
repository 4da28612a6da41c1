package main

import (
	"testing"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
)

func TestPosition(t *testing.T) {
	b, ok := position("startpos", []string{"e2e4", "e7e5", "zz"})
	if !ok {
		t.Fatalf("expected a board")
	}
	if b.At(board.Square{Row: 4, Col: 4}) != 'P' || b.At(board.Square{Row: 3, Col: 4}) != 'p' {
		t.Fatalf("moves not applied:\n%s", board.Placement(b))
	}
	if _, ok := position("bogus", nil); ok {
		t.Fatalf("bad fen should not produce a board")
	}
}

func TestPlayerName(t *testing.T) {
	if got := playerName(lichess.Player{AILevel: 3}); got != "AI level 3" {
		t.Fatalf("ai name = %q", got)
	}
	if got := playerName(lichess.Player{ID: "bob"}); got != "bob" {
		t.Fatalf("id fallback = %q", got)
	}
}
