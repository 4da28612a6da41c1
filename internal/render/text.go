package render

import (
	"strings"

	"github.com/park285/Cheese-Lichess-board/internal/board"
)

// ASCII draws the board as plain text with rank and file labels, '.' for empty cells.
func ASCII(b board.Board, flip bool) string {
	var sb strings.Builder
	files := "abcdefgh"
	if flip {
		files = "hgfedcba"
	}
	for i := 0; i < board.Size; i++ {
		row := i
		if flip {
			row = board.Size - 1 - i
		}
		sb.WriteByte(byte('8' - row))
		sb.WriteByte(' ')
		for j := 0; j < board.Size; j++ {
			col := j
			if flip {
				col = board.Size - 1 - j
			}
			p := b[row][col]
			if p.IsEmpty() {
				sb.WriteByte('.')
			} else {
				sb.WriteByte(byte(p))
			}
			if j < board.Size-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for j := 0; j < board.Size; j++ {
		sb.WriteByte(files[j])
		if j < board.Size-1 {
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}
