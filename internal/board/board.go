package board

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrMalformedBoardEncoding = errors.New("malformed board encoding")
	ErrEmptySourceSquare      = errors.New("empty source square")
)

// Size is the board dimension; rows and columns both run 0..Size-1.
const Size = 8

// StartFEN is the standard initial position in full FEN.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Side identifies chess side.
type Side byte

const (
	White Side = 'w'
	Black Side = 'b'
)

func (s Side) Opposite() Side {
	if s == Black {
		return White
	}
	return Black
}

func (s Side) String() string {
	switch s {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "unknown"
	}
}

// ParseSide accepts "w", "b", "white" and "black" in any case.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return 0, false
	}
}

// Piece is a FEN piece letter; uppercase is white, lowercase is black, 0 is an empty cell.
type Piece byte

const NoPiece Piece = 0

func (p Piece) IsEmpty() bool { return p == NoPiece }

// Side reports the owner of the piece; ok is false for an empty cell.
func (p Piece) Side() (Side, bool) {
	switch {
	case p >= 'A' && p <= 'Z':
		return White, true
	case p >= 'a' && p <= 'z':
		return Black, true
	default:
		return 0, false
	}
}

// Kind returns the lowercase piece letter regardless of color.
func (p Piece) Kind() byte {
	if p >= 'A' && p <= 'Z' {
		return byte(p) + ('a' - 'A')
	}
	return byte(p)
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return ""
	}
	return string(rune(p))
}

// Square is a grid coordinate. Row 0 is rank 8, column 0 is file a.
type Square struct {
	Row int
	Col int
}

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < Size && s.Col >= 0 && s.Col < Size
}

// Board is an 8x8 grid of optional pieces. The zero value is an empty board.
type Board [Size][Size]Piece

// Start returns the standard initial position.
func Start() Board {
	b, _, err := Parse(StartFEN)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Board) At(sq Square) Piece {
	if !sq.Valid() {
		return NoPiece
	}
	return b[sq.Row][sq.Col]
}

func (b *Board) Set(sq Square, p Piece) {
	if sq.Valid() {
		b[sq.Row][sq.Col] = p
	}
}

// Count returns how many pieces the side has on the board.
func (b *Board) Count(side Side) int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s, ok := b[r][c].Side(); ok && s == side {
				n++
			}
		}
	}
	return n
}

// ApplyMove moves the piece on from to to, replacing whatever stood there.
func (b *Board) ApplyMove(from, to Square) error {
	if !from.Valid() || !to.Valid() {
		return ErrEmptySourceSquare
	}
	p := b[from.Row][from.Col]
	if p.IsEmpty() {
		return ErrEmptySourceSquare
	}
	b[to.Row][to.Col] = p
	if from != to {
		b[from.Row][from.Col] = NoPiece
	}
	return nil
}

// Parse reads the placement and side-to-move fields of a FEN string.
// Castling, en passant and clock fields are accepted and ignored.
func Parse(fen string) (Board, Side, error) {
	var b Board
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return b, 0, ErrMalformedBoardEncoding
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != Size {
		return b, 0, malformed("expected 8 ranks, got " + strconv.Itoa(len(ranks)))
	}
	for row, rank := range ranks {
		col := 0
		for i := 0; i < len(rank); i++ {
			ch := rank[i]
			switch {
			case ch >= '1' && ch <= '8':
				col += int(ch - '0')
			case isPieceLetter(ch):
				if col >= Size {
					return b, 0, malformed("rank " + strconv.Itoa(Size-row) + " overflows")
				}
				b[row][col] = Piece(ch)
				col++
			default:
				return b, 0, malformed("unexpected character " + strconv.QuoteRune(rune(ch)))
			}
			if col > Size {
				return b, 0, malformed("rank " + strconv.Itoa(Size-row) + " overflows")
			}
		}
		if col != Size {
			return b, 0, malformed("rank " + strconv.Itoa(Size-row) + " has " + strconv.Itoa(col) + " files")
		}
	}

	turn := White
	if len(fields) > 1 {
		switch fields[1] {
		case "w":
			turn = White
		case "b":
			turn = Black
		default:
			return b, 0, malformed("bad side to move " + strconv.Quote(fields[1]))
		}
	}
	return b, turn, nil
}

// Serialize is the inverse of Parse: placement, a space, then the side to move.
func Serialize(b Board, turn Side) string {
	var sb strings.Builder
	sb.Grow(72)
	sb.WriteString(Placement(b))
	sb.WriteByte(' ')
	if turn == Black {
		sb.WriteByte('b')
	} else {
		sb.WriteByte('w')
	}
	return sb.String()
}

// Placement returns only the digit-run-compressed piece placement field.
func Placement(b Board) string {
	var sb strings.Builder
	for row := 0; row < Size; row++ {
		if row > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for col := 0; col < Size; col++ {
			p := b[row][col]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(byte(p))
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	return sb.String()
}

func isPieceLetter(ch byte) bool {
	switch ch {
	case 'p', 'n', 'b', 'r', 'q', 'k', 'P', 'N', 'B', 'R', 'Q', 'K':
		return true
	default:
		return false
	}
}

func malformed(detail string) error {
	return &encodingError{detail: detail}
}

type encodingError struct{ detail string }

func (e *encodingError) Error() string { return ErrMalformedBoardEncoding.Error() + ": " + e.detail }
func (e *encodingError) Unwrap() error { return ErrMalformedBoardEncoding }
