package tui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/render"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

type fakeControls struct {
	taps    []board.Square
	moves   []string
	started int
	resigns int
}

func (f *fakeControls) StartGame()            { f.started++ }
func (f *fakeControls) Tap(row, col int)      { f.taps = append(f.taps, board.Square{Row: row, Col: col}) }
func (f *fakeControls) SubmitMove(uci string) { f.moves = append(f.moves, uci) }
func (f *fakeControls) Resign()               { f.resigns++ }

func TestBoardSquareMapping(t *testing.T) {
	sq, ok := boardSquare(0, 1, false)
	if !ok || sq != (board.Square{Row: 0, Col: 0}) {
		t.Fatalf("a8 cell = %v %v", sq, ok)
	}
	sq, ok = boardSquare(0, 1, true)
	if !ok || sq != (board.Square{Row: 7, Col: 7}) {
		t.Fatalf("flipped top-left = %v %v", sq, ok)
	}
	for _, cell := range [][2]int{{0, 0}, {8, 3}, {-1, 1}, {2, 9}} {
		if _, ok := boardSquare(cell[0], cell[1], false); ok {
			t.Fatalf("cell %v should not map to a square", cell)
		}
	}
}

func TestDrawAndSelect(t *testing.T) {
	ctl := &fakeControls{}
	a := New(ctl, nil)
	b := board.Start()
	a.draw(session.Snapshot{
		State:     session.InProgress,
		Board:     b,
		Turn:      board.Black,
		LocalSide: board.Black,
	})

	// Black at the bottom: the top-left cell is h1.
	if got := strings.TrimSpace(a.board.GetCell(0, 1).Text); got != glyph('R') {
		t.Fatalf("top-left glyph = %q", got)
	}
	if got := a.board.GetCell(0, 0).Text; got != "1" {
		t.Fatalf("rank label = %q", got)
	}
	if got := a.board.GetCell(numRows, 1).Text; got != "h" {
		t.Fatalf("file label = %q", got)
	}
	if got := a.status.GetText(true); got != "Your move (black)" {
		t.Fatalf("status = %q", got)
	}

	a.onSelect(6, 4)
	a.onSelect(8, 4)
	if len(ctl.taps) != 1 || ctl.taps[0] != (board.Square{Row: 1, Col: 4}) {
		t.Fatalf("taps = %v", ctl.taps)
	}
}

func TestMouseClickTapsSquare(t *testing.T) {
	ctl := &fakeControls{}
	a := New(ctl, nil)
	a.draw(session.Snapshot{State: session.InProgress, Board: board.Start(), Turn: board.White, LocalSide: board.White})

	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 24)
	a.board.SetRect(0, 0, 60, 12)
	a.board.Draw(screen)

	// Sweep the rank-2 row: every file must answer a click
	// and the label column must stay silent.
	mouse := a.board.MouseHandler()
	for x := 0; x < 60; x++ {
		mouse(tview.MouseLeftClick, tcell.NewEventMouse(x, 6, tcell.Button1, 0), func(tview.Primitive) {})
	}
	seen := map[int]bool{}
	for _, sq := range ctl.taps {
		if sq.Row != 6 {
			t.Fatalf("click on rank 2 tapped %v", sq)
		}
		seen[sq.Col] = true
	}
	if len(seen) != board.Size {
		t.Fatalf("clicked files = %v, want all %d", seen, board.Size)
	}

	// The file-label row below the board is not a square.
	n := len(ctl.taps)
	for x := 0; x < 60; x++ {
		mouse(tview.MouseLeftClick, tcell.NewEventMouse(x, numRows, tcell.Button1, 0), func(tview.Primitive) {})
	}
	if len(ctl.taps) != n {
		t.Fatalf("label row produced taps: %v", ctl.taps[n:])
	}
}

func TestSubmitInput(t *testing.T) {
	ctl := &fakeControls{}
	a := New(ctl, nil)
	a.submitInput("  e2e4 ")
	a.submitInput("   ")
	if len(ctl.moves) != 1 || ctl.moves[0] != "e2e4" {
		t.Fatalf("moves = %v", ctl.moves)
	}
	if a.input.GetText() != "" {
		t.Fatalf("input not cleared")
	}
}

func TestSquareColor(t *testing.T) {
	sel := board.Square{Row: 6, Col: 4}
	last := &render.Highlight{From: board.Square{Row: 1, Col: 4}, To: board.Square{Row: 3, Col: 4}}
	if squareColor(sel, &sel, last) != selectedSquare {
		t.Fatalf("selection not highlighted")
	}
	if squareColor(board.Square{Row: 3, Col: 4}, &sel, last) != lastMoveSquare {
		t.Fatalf("last move not highlighted")
	}
	if squareColor(board.Square{Row: 0, Col: 0}, nil, nil) != lightSquare {
		t.Fatalf("a8 should be light")
	}
	if squareColor(board.Square{Row: 0, Col: 1}, nil, nil) != darkSquare {
		t.Fatalf("b8 should be dark")
	}
}

func TestStoppedAppIgnoresUpdates(t *testing.T) {
	a := New(&fakeControls{}, nil)
	a.Stop()
	a.Render(session.Snapshot{})
	a.Notify(session.Notice{Text: "ignored"})
}
