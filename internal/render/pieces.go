package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/Cheese-Lichess-board/internal/board"
)

//go:embed pieces/*.svg
var pieceFiles embed.FS

// Piece SVGs are shared by both colors; placeholders are swapped per side.
var (
	fillPlaceholder = []byte("PIECE_FILL")
	edgePlaceholder = []byte("PIECE_EDGE")
)

var sidePalette = map[board.Side][2][]byte{
	board.White: {[]byte("#f8f8f4"), []byte("#1c1c1c")},
	board.Black: {[]byte("#23211f"), []byte("#e8e4dc")},
}

type pieceCacheKey struct {
	piece board.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece board.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	side, ok := piece.Side()
	if !ok {
		return nil, fmt.Errorf("render empty piece")
	}
	name := pieceAssetName(piece)
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(colorize(data, side)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

func pieceAssetName(piece board.Piece) string {
	return fmt.Sprintf("pieces/%c.svg", piece.Kind())
}

func colorize(svg []byte, side board.Side) []byte {
	pal := sidePalette[side]
	out := bytes.ReplaceAll(svg, fillPlaceholder, pal[0])
	return bytes.ReplaceAll(out, edgePlaceholder, pal[1])
}
