package render

import (
	"image"
	"image/color"
	imagedraw "image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

type pointF struct {
	X float64
	Y float64
}

// drawRoundedPanel fills rect with clr, skipping pixels outside the corner arcs.
func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	if limit := min(rect.Dx(), rect.Dy()) / 2; radius > limit {
		radius = limit
	}
	if radius <= 0 {
		imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
		return
	}
	r := float64(radius)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			cx := clampF(float64(x)+0.5, float64(rect.Min.X)+r, float64(rect.Max.X)-r)
			cy := clampF(float64(y)+0.5, float64(rect.Min.Y)+r, float64(rect.Max.Y)-r)
			if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= r {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if drawer == nil || text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := max(rect.Min.X+(rect.Dx()-width)/2, rect.Min.X)
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if text == "" || maxWidth <= 0 || face == nil {
		return text
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ""
}

// blendPixel composites clr over one pixel.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	imagedraw.Draw(img, image.Rect(x, y, x+1, y+1), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func fillQuad(img *image.RGBA, p0, p1, p2, p3 pointF, clr color.Color) {
	fillTriangleF(img, p0, p1, p2, clr)
	fillTriangleF(img, p0, p2, p3, clr)
}

// fillTriangleF rasterises a triangle by testing pixel centres against its edges.
func fillTriangleF(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	area := edge(a, b, c)
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := pointF{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			w0, w1, w2 := edge(b, c, p), edge(c, a, p), edge(a, b, p)
			if area > 0 && w0 >= 0 && w1 >= 0 && w2 >= 0 || area < 0 && w0 <= 0 && w1 <= 0 && w2 <= 0 {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func edge(a, b, p pointF) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

func clampF(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(v, hi))
}
