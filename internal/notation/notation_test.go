package notation

import (
	"errors"
	"testing"

	"github.com/park285/Cheese-Lichess-board/internal/board"
)

func TestSquareMapping(t *testing.T) {
	cases := []struct {
		sq       string
		row, col int
	}{
		{"a1", 7, 0},
		{"a8", 0, 0},
		{"h1", 7, 7},
		{"h8", 0, 7},
		{"e2", 6, 4},
		{"e4", 4, 4},
	}
	for _, tc := range cases {
		got, err := SquareToCoordinate(tc.sq[0], tc.sq[1])
		if err != nil {
			t.Fatalf("SquareToCoordinate(%s): %v", tc.sq, err)
		}
		if got.Row != tc.row || got.Col != tc.col {
			t.Fatalf("%s -> %+v, want row=%d col=%d", tc.sq, got, tc.row, tc.col)
		}
		back, err := CoordinateToSquare(got)
		if err != nil || back != tc.sq {
			t.Fatalf("CoordinateToSquare(%+v) = %q, %v", got, back, err)
		}
	}
}

func TestCoordinateRoundTripAllSquares(t *testing.T) {
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			s, err := CoordinateToSquare(board.Square{Row: r, Col: c})
			if err != nil {
				t.Fatalf("CoordinateToSquare(%d,%d): %v", r, c, err)
			}
			sq, err := SquareToCoordinate(s[0], s[1])
			if err != nil || sq.Row != r || sq.Col != c {
				t.Fatalf("round trip %d,%d -> %s -> %+v (%v)", r, c, s, sq, err)
			}
		}
	}
}

func TestMoveRoundTripAllCoordinates(t *testing.T) {
	for r1 := 0; r1 < board.Size; r1++ {
		for c1 := 0; c1 < board.Size; c1++ {
			for r2 := 0; r2 < board.Size; r2++ {
				for c2 := 0; c2 < board.Size; c2++ {
					s, err := EncodeMove(r1, c1, r2, c2)
					if err != nil {
						t.Fatalf("EncodeMove: %v", err)
					}
					from, to, err := DecodeMove(s)
					if err != nil {
						t.Fatalf("DecodeMove(%q): %v", s, err)
					}
					if from != (board.Square{Row: r1, Col: c1}) || to != (board.Square{Row: r2, Col: c2}) {
						t.Fatalf("DecodeMove(%q) = %+v %+v", s, from, to)
					}
				}
			}
		}
	}
}

func TestEncodeMoveExample(t *testing.T) {
	s, err := EncodeMove(6, 4, 4, 4)
	if err != nil || s != "e2e4" {
		t.Fatalf("EncodeMove = %q, %v", s, err)
	}
	if _, err := EncodeMove(8, 0, 0, 0); !errors.Is(err, ErrInvalidSquare) {
		t.Fatalf("out of range err = %v", err)
	}
}

func TestDecodeMoveMalformed(t *testing.T) {
	for _, s := range []string{"", "e2", "e2e", "e2e4q", "i2e4", "e0e4", "e2e9", "E2E4", "e2-4"} {
		if _, _, err := DecodeMove(s); !errors.Is(err, ErrMalformedMoveString) {
			t.Fatalf("DecodeMove(%q) err = %v", s, err)
		}
	}
}

func TestDecodeUCIPromotion(t *testing.T) {
	m, err := DecodeUCI("e7e8q")
	if err != nil {
		t.Fatalf("DecodeUCI: %v", err)
	}
	if m.Promotion != 'q' || m.String() != "e7e8q" {
		t.Fatalf("unexpected move %+v %s", m, m.String())
	}
	if _, err := DecodeUCI("e7e8k"); !errors.Is(err, ErrMalformedMoveString) {
		t.Fatalf("king promotion accepted: %v", err)
	}

	b, _, err := board.Parse("8/4P3/8/8/8/8/8/8 w")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := m.Apply(&b); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := b.At(board.Square{Row: 0, Col: 4}); got != 'Q' {
		t.Fatalf("promoted piece = %q, want Q", got)
	}
}
