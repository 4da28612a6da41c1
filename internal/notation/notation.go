// Package notation converts between grid coordinates and algebraic square/move strings.
package notation

import (
	"errors"
	"fmt"

	"github.com/park285/Cheese-Lichess-board/internal/board"
)

var (
	ErrMalformedMoveString = errors.New("malformed move string")
	ErrInvalidSquare       = errors.New("invalid square")
)

// SquareToCoordinate maps file 'a'..'h' and rank '1'..'8' to a grid square.
// row = 8 - rank, col = file - 'a'.
func SquareToCoordinate(file, rank byte) (board.Square, error) {
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return board.Square{}, fmt.Errorf("%w: %c%c", ErrInvalidSquare, file, rank)
	}
	return board.Square{Row: board.Size - int(rank-'0'), Col: int(file - 'a')}, nil
}

// CoordinateToSquare is the inverse of SquareToCoordinate.
func CoordinateToSquare(sq board.Square) (string, error) {
	if !sq.Valid() {
		return "", fmt.Errorf("%w: row=%d col=%d", ErrInvalidSquare, sq.Row, sq.Col)
	}
	return string([]byte{byte('a' + sq.Col), byte('0' + board.Size - sq.Row)}), nil
}

// EncodeMove builds a four character move such as "e2e4".
func EncodeMove(fromRow, fromCol, toRow, toCol int) (string, error) {
	from, err := CoordinateToSquare(board.Square{Row: fromRow, Col: fromCol})
	if err != nil {
		return "", err
	}
	to, err := CoordinateToSquare(board.Square{Row: toRow, Col: toCol})
	if err != nil {
		return "", err
	}
	return from + to, nil
}

// DecodeMove is the exact inverse of EncodeMove. Only [a-h][1-8][a-h][1-8] is accepted.
func DecodeMove(s string) (from, to board.Square, err error) {
	if len(s) != 4 {
		return from, to, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
	}
	from, err = SquareToCoordinate(s[0], s[1])
	if err != nil {
		return board.Square{}, board.Square{}, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
	}
	to, err = SquareToCoordinate(s[2], s[3])
	if err != nil {
		return board.Square{}, board.Square{}, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
	}
	return from, to, nil
}

// Move is a decoded UCI move. Promotion is the lowercase piece letter or 0.
type Move struct {
	From      board.Square
	To        board.Square
	Promotion byte
}

// DecodeUCI accepts the four character form plus an optional promotion suffix (q, r, b, n).
func DecodeUCI(s string) (Move, error) {
	var m Move
	switch len(s) {
	case 4:
	case 5:
		switch s[4] {
		case 'q', 'r', 'b', 'n':
			m.Promotion = s[4]
		default:
			return Move{}, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
		}
	default:
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
	}
	from, to, err := DecodeMove(s[:4])
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrMalformedMoveString, s)
	}
	m.From, m.To = from, to
	return m, nil
}

func (m Move) String() string {
	s, err := EncodeMove(m.From.Row, m.From.Col, m.To.Row, m.To.Col)
	if err != nil {
		return ""
	}
	if m.Promotion != 0 {
		s += string(rune(m.Promotion))
	}
	return s
}

// Apply plays the move on b, placing the promoted piece in the mover's color when set.
func (m Move) Apply(b *board.Board) error {
	mover := b.At(m.From)
	if err := b.ApplyMove(m.From, m.To); err != nil {
		return err
	}
	if m.Promotion != 0 {
		promoted := board.Piece(m.Promotion)
		if side, _ := mover.Side(); side == board.White {
			promoted = board.Piece(m.Promotion - ('a' - 'A'))
		}
		b.Set(m.To, promoted)
	}
	return nil
}
