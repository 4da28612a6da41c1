package tui

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/render"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

// Controls is what the terminal UI drives.
type Controls interface {
	StartGame()
	Tap(row, col int)
	SubmitMove(uci string)
	Resign()
}

const (
	numRows       = board.Size
	numCols       = board.Size
	maxNoticeRows = 200
)

// App is a tview front end and a session.Observer. Render and Notify only
// queue work for the UI goroutine.
type App struct {
	app     *tview.Application
	board   *tview.Table
	status  *tview.TextView
	notices *tview.TextView
	input   *tview.InputField
	layout  *tview.Grid

	ctl     Controls
	onQuit  func()
	stopped atomic.Bool

	// UI goroutine only.
	flip        bool
	noticeLines int
}

func New(ctl Controls, onQuit func()) *App {
	a := &App{
		app:     tview.NewApplication(),
		board:   tview.NewTable(),
		status:  tview.NewTextView(),
		notices: tview.NewTextView().SetScrollable(true).SetWrap(true),
		input:   tview.NewInputField(),
		ctl:     ctl,
		onQuit:  onQuit,
	}

	startBtn := tview.NewButton("New game").SetSelectedFunc(func() { a.ctl.StartGame() })
	resignBtn := tview.NewButton("Resign").SetSelectedFunc(func() { a.ctl.Resign() })
	quitBtn := tview.NewButton("Quit").SetSelectedFunc(a.quit)

	a.input.SetLabel("Move: ").SetFieldWidth(8).SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			a.submitInput(a.input.GetText())
		}
	})
	a.status.SetText("No game")
	a.notices.SetBorder(true).SetTitle(" Messages ")

	a.board.SetSelectable(true, true)
	a.board.Select(0, 1).SetSelectedFunc(a.onSelect).SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.quit()
		}
	})

	controls := tview.NewGrid().
		SetColumns(12, 12, 12).
		SetRows(1, 1, 1, 1, -1).
		AddItem(startBtn, 0, 0, 1, 1, 0, 0, false).
		AddItem(resignBtn, 0, 1, 1, 1, 0, 0, false).
		AddItem(quitBtn, 0, 2, 1, 1, 0, 0, false).
		AddItem(a.status, 2, 0, 1, 3, 0, 0, false).
		AddItem(a.input, 3, 0, 1, 3, 0, 0, false).
		AddItem(a.notices, 4, 0, 1, 3, 0, 0, false)

	a.layout = tview.NewGrid().
		SetRows(-1, numRows+1, -1).
		SetColumns(-1, 3*numCols+4, 40, -1).
		AddItem(tview.NewBox(), 0, 0, 3, 1, 0, 0, false).
		AddItem(tview.NewBox(), 0, 3, 3, 1, 0, 0, false).
		AddItem(a.board, 1, 1, 1, 1, 0, 0, true).
		AddItem(controls, 0, 2, 3, 1, 0, 0, false)

	focus := []tview.Primitive{a.board, a.input, startBtn, resignBtn, quitBtn}
	focusIdx := 0
	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyTab {
			focusIdx = (focusIdx + 1) % len(focus)
			a.app.SetFocus(focus[focusIdx])
			return nil
		}
		return ev
	})

	a.draw(session.Snapshot{Board: board.Start(), Turn: board.White})
	return a
}

// Run blocks until the user quits or Stop is called.
func (a *App) Run() error {
	defer a.stopped.Store(true)
	return a.app.SetRoot(a.layout, true).EnableMouse(true).SetFocus(a.board).Run()
}

func (a *App) Stop() {
	if a.stopped.Swap(true) {
		return
	}
	a.app.Stop()
}

func (a *App) Render(s session.Snapshot) {
	if a.stopped.Load() {
		return
	}
	a.app.QueueUpdateDraw(func() { a.draw(s) })
}

func (a *App) Notify(n session.Notice) {
	if a.stopped.Load() {
		return
	}
	a.app.QueueUpdateDraw(func() { a.appendNotice(n.Text) })
}

func (a *App) quit() {
	a.Stop()
	if a.onQuit != nil {
		a.onQuit()
	}
}

func (a *App) onSelect(row, col int) {
	sq, ok := boardSquare(row, col, a.flip)
	if !ok {
		return
	}
	a.ctl.Tap(sq.Row, sq.Col)
}

func (a *App) submitInput(text string) {
	mv := strings.TrimSpace(text)
	a.input.SetText("")
	if mv == "" {
		return
	}
	a.ctl.SubmitMove(mv)
}

func (a *App) appendNotice(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if a.noticeLines >= maxNoticeRows {
		a.notices.Clear()
		a.noticeLines = 0
	}
	fmt.Fprintln(a.notices, text)
	a.noticeLines++
	a.notices.ScrollToEnd()
}

// draw rebuilds the table: ranks in column 0, files in the last row.
func (a *App) draw(s session.Snapshot) {
	a.flip = s.LocalSide == board.Black
	var last *render.Highlight
	if opts := render.OptionsFor(s); opts.Highlight != nil {
		last = opts.Highlight
	}

	for r := 0; r <= numRows; r++ {
		for f := 0; f <= numCols; f++ {
			switch {
			case r == numRows && f == 0:
				a.board.SetCell(r, f, tview.NewTableCell("").SetSelectable(false))
			case f == 0:
				sq, _ := boardSquare(r, 1, a.flip)
				a.board.SetCell(r, f, labelCell(fmt.Sprintf("%d", board.Size-sq.Row)))
			case r == numRows:
				sq, _ := boardSquare(0, f, a.flip)
				a.board.SetCell(r, f, labelCell(string(rune('a'+sq.Col))))
			default:
				sq, _ := boardSquare(r, f, a.flip)
				p := s.Board.At(sq)
				row, col := r, f
				a.board.SetCell(r, f, tview.NewTableCell(" "+glyph(p)+" ").
					SetAlign(tview.AlignCenter).
					SetTextColor(pieceColor(p)).
					SetBackgroundColor(squareColor(sq, s.Selection, last)).
					SetClickedFunc(func() bool {
						// Mouse clicks skip the selected func; Enter still goes through it.
						a.onSelect(row, col)
						return false
					}))
			}
		}
	}
	a.status.SetText(render.TurnText(s))
}

func labelCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).SetAlign(tview.AlignCenter).SetSelectable(false)
}

// boardSquare maps a table cell to a board square; row 0 of the board is rank 8.
func boardSquare(row, col int, flip bool) (board.Square, bool) {
	if row < 0 || row >= numRows || col < 1 || col > numCols {
		return board.Square{}, false
	}
	sq := board.Square{Row: row, Col: col - 1}
	if flip {
		sq = board.Square{Row: board.Size - 1 - sq.Row, Col: board.Size - 1 - sq.Col}
	}
	return sq, true
}

var glyphs = map[board.Piece]string{
	'K': "♔", 'Q': "♕", 'R': "♖", 'B': "♗", 'N': "♘", 'P': "♙",
	'k': "♚", 'q': "♛", 'r': "♜", 'b': "♝", 'n': "♞", 'p': "♟",
}

func glyph(p board.Piece) string {
	if g, ok := glyphs[p]; ok {
		return g
	}
	return " "
}

var (
	lightSquare     = tcell.NewRGBColor(233, 207, 163)
	darkSquare      = tcell.NewRGBColor(187, 136, 96)
	selectedSquare  = tcell.NewRGBColor(110, 190, 120)
	lastMoveSquare  = tcell.NewRGBColor(230, 210, 110)
	whitePieceColor = tcell.ColorWhite
	blackPieceColor = tcell.ColorBlack
)

func squareColor(sq board.Square, selection *board.Square, last *render.Highlight) tcell.Color {
	switch {
	case selection != nil && *selection == sq:
		return selectedSquare
	case last != nil && (last.From == sq || last.To == sq):
		return lastMoveSquare
	case (sq.Row+sq.Col)%2 == 1:
		return darkSquare
	default:
		return lightSquare
	}
}

func pieceColor(p board.Piece) tcell.Color {
	if side, ok := p.Side(); ok && side == board.Black {
		return blackPieceColor
	}
	return whitePieceColor
}
