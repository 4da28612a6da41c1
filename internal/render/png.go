package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/notation"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

type Highlight struct {
	From board.Square
	To   board.Square
}

type Options struct {
	Highlight *Highlight
	Selection *board.Square
	// Flip draws the board from black's side.
	Flip   bool
	Header string
	Turn   string
}

const (
	squareSize   = 64
	boardSize    = squareSize * board.Size
	sideMargin   = 28
	topMargin    = 72
	bottomMargin = 28
	panelHeight  = 30
	panelRadius  = 10
	panelPadX    = 16
	gapToBoard   = 16
)

// PNGRenderer draws a board with a small header and coordinates.
type PNGRenderer struct{}

func NewPNGRenderer() *PNGRenderer { return &PNGRenderer{} }

// Size returns the pixel dimensions of every rendered image.
func (r *PNGRenderer) Size() (int, int) {
	return boardSize + sideMargin*2, boardSize + topMargin + bottomMargin
}

func (r *PNGRenderer) RenderPNG(ctx context.Context, b board.Board, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	w, h := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := image.Point{X: sideMargin, Y: topMargin}
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardSize, origin.Y+boardSize)

	drawBoardShadow(img, boardRect)
	drawSquares(img, origin)
	drawHighlight(img, &b, opts.Highlight, origin, opts.Flip)
	if opts.Selection != nil && opts.Selection.Valid() {
		drawSquareOverlay(img, *opts.Selection, origin, opts.Flip, selectionColor)
	}
	if err := drawPieces(img, &b, origin, opts.Flip); err != nil {
		return nil, err
	}
	drawHUD(img, opts, boardRect)
	drawCoordinates(img, origin, opts.Flip)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// OptionsFor derives render options from a session snapshot: last move,
// selection, orientation from the local side and a status line.
func OptionsFor(s session.Snapshot) Options {
	opts := Options{
		Selection: s.Selection,
		Flip:      s.LocalSide == board.Black,
		Header:    headerText(s),
		Turn:      TurnText(s),
	}
	if s.LastMove != "" {
		if mv, err := notation.DecodeUCI(s.LastMove); err == nil {
			opts.Highlight = &Highlight{From: mv.From, To: mv.To}
		}
	}
	return opts
}

func headerText(s session.Snapshot) string {
	if s.Level > 0 {
		return fmt.Sprintf("Lichess AI level %d", s.Level)
	}
	return "Lichess AI"
}

// TurnText is the one-line status shown next to the board.
func TurnText(s session.Snapshot) string {
	switch s.State {
	case session.NoGame:
		return "No game"
	case session.AwaitingStart:
		return "Starting..."
	case session.Ended:
		if s.Winner != "" {
			return fmt.Sprintf("Game over: %s (%s wins)", s.Status, s.Winner)
		}
		return "Game over: " + s.Status
	}
	turn := s.Turn.String()
	switch {
	case s.LocalSide == 0:
		return turn + " to move"
	case s.MyTurn():
		return "Your move (" + turn + ")"
	default:
		return "Waiting for " + turn
	}
}

var (
	backgroundColor         = color.RGBA{R: 22, G: 24, B: 34, A: 255}
	lightSquare             = color.RGBA{233, 207, 163, 255}
	darkSquare              = color.RGBA{187, 136, 96, 255}
	selectionColor          = color.NRGBA{R: 90, G: 200, B: 120, A: 120}
	whiteMoveHighlightFill  = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveHighlightArrow = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	hudPanelColor           = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudShadowColor          = color.NRGBA{0, 0, 0, 50}
	hudTextPrimary          = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTurnTextColor        = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	boardShadowColor        = color.NRGBA{0, 0, 0, 60}
	coordinateTextColor     = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func drawBoardShadow(img *image.RGBA, boardRect image.Rectangle) {
	shadowRect := image.Rect(boardRect.Min.X+4, boardRect.Min.Y+8, boardRect.Max.X+8, boardRect.Max.Y+8)
	imagedraw.Draw(img, shadowRect, image.NewUniform(boardShadowColor), image.Point{}, imagedraw.Over)
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, b *board.Board, origin image.Point, flip bool) error {
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			sq := board.Square{Row: row, Col: col}
			piece := b.At(sq)
			if piece.IsEmpty() {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, squareRect(sq, origin, flip), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// drawHighlight marks the last move: white moves fill both squares, black
// moves get an arrow.
func drawHighlight(img *image.RGBA, b *board.Board, h *Highlight, origin image.Point, flip bool) {
	if h == nil || !h.From.Valid() || !h.To.Valid() {
		return
	}
	mover := b.At(h.To)
	if mover.IsEmpty() {
		mover = b.At(h.From)
	}
	if side, ok := mover.Side(); ok && side == board.Black {
		drawArrow(img, squareRect(h.From, origin, flip), squareRect(h.To, origin, flip), blackMoveHighlightArrow)
		return
	}
	drawSquareOverlay(img, h.From, origin, flip, whiteMoveHighlightFill)
	drawSquareOverlay(img, h.To, origin, flip, whiteMoveHighlightFill)
}

func drawSquareOverlay(img *image.RGBA, sq board.Square, origin image.Point, flip bool, clr color.Color) {
	imagedraw.Draw(img, squareRect(sq, origin, flip), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawHUD(img *image.RGBA, opts Options, boardRect image.Rectangle) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	title := strings.TrimSpace(opts.Header)
	if title == "" {
		title = "Lichess AI"
	}
	turn := strings.TrimSpace(opts.Turn)

	bottom := boardRect.Min.Y - gapToBoard
	top := bottom - panelHeight

	titleWidth := drawer.MeasureString(title).Round() + panelPadX*2
	titleRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+titleWidth, bottom)
	drawRoundedPanel(img, titleRect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, titleRect, title, hudTextPrimary)

	if turn == "" {
		return
	}
	maxTurn := boardRect.Dx() - titleWidth - 16
	turnWidth := drawer.MeasureString(turn).Round() + panelPadX*2
	if turnWidth > maxTurn {
		turn = truncateWithEllipsis(face, turn, maxTurn-panelPadX*2)
		turnWidth = maxTurn
	}
	turnRect := image.Rect(boardRect.Max.X-turnWidth, top, boardRect.Max.X, bottom)
	drawRoundedPanel(img, turnRect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
	drawRoundedPanel(img, turnRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, turnRect, turn, hudTurnTextColor)
}

func drawCoordinates(dst imagedraw.Image, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + boardSize

	for i := 0; i < board.Size; i++ {
		sq := board.Square{Row: i, Col: i}
		if flip {
			sq = board.Square{Row: board.Size - 1 - i, Col: board.Size - 1 - i}
		}
		name, err := notation.CoordinateToSquare(sq)
		if err != nil {
			continue
		}
		center := i*squareSize + squareSize/2
		drawCenteredText(drawer, name[1:], origin.X-sideMargin/2, origin.Y+center+ascent/2)
		drawCenteredText(drawer, name[:1], origin.X+center, boardEndY+ascent+4)
	}
}

// squareRect maps a board square to its on-screen cell.
func squareRect(sq board.Square, origin image.Point, flip bool) image.Rectangle {
	row, col := sq.Row, sq.Col
	if flip {
		row, col = board.Size-1-row, board.Size-1-col
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawArrow(img *image.RGBA, fromRect, toRect image.Rectangle, clr color.Color) {
	start := pointF{X: float64(fromRect.Min.X + squareSize/2), Y: float64(fromRect.Min.Y + squareSize/2)}
	end := pointF{X: float64(toRect.Min.X + squareSize/2), Y: float64(toRect.Min.Y + squareSize/2)}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.18
	headWidth := float64(squareSize) * 0.32
	baseX := start.X + dirX*baseLength
	baseY := start.Y + dirY*baseLength

	fillQuad(img,
		pointF{X: start.X - perpX*halfWidth, Y: start.Y - perpY*halfWidth},
		pointF{X: start.X + perpX*halfWidth, Y: start.Y + perpY*halfWidth},
		pointF{X: baseX + perpX*halfWidth, Y: baseY + perpY*halfWidth},
		pointF{X: baseX - perpX*halfWidth, Y: baseY - perpY*halfWidth},
		clr,
	)
	fillTriangleF(img,
		end,
		pointF{X: baseX - perpX*headWidth/2, Y: baseY - perpY*headWidth/2},
		pointF{X: baseX + perpX*headWidth/2, Y: baseY + perpY*headWidth/2},
		clr,
	)
}
