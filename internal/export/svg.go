// Package export renders terminal drawings and property series as SVG.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/moldyn/internal/viz"
)

const (
	background = "#0a0a0a"
	dotColor   = "#00ff00"
)

// CanvasToSVG draws every lit braille dot of canvas as a circle, scale units
// apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	w := float64(canvas.DotsX()) * scale
	h := float64(canvas.DotsY()) * scale

	var sb strings.Builder
	writeHeader(&sb, w, h)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", dotColor)

	r := scale * 0.4
	for y := 0; y < canvas.DotsY(); y++ {
		for x := 0; x < canvas.DotsX(); x++ {
			if canvas.IsSet(x, y) {
				cx := float64(x)*scale + scale/2
				cy := float64(y)*scale + scale/2
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, r)
			}
		}
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

// SeriesToSVG draws ys against xs as a polyline in a width x height frame
// with 10% padding on every side.
func SeriesToSVG(xs, ys []float64, width, height int, stroke string) (string, error) {
	if len(xs) != len(ys) {
		return "", fmt.Errorf("export: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return "", fmt.Errorf("export: need at least 2 points, got %d", len(xs))
	}

	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)
	padX, padY := (maxX-minX)*0.1, (maxY-minY)*0.1
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = math.Max(math.Abs(minY)*0.1, 1e-12)
	}
	minX, maxX = minX-padX, maxX+padX
	minY, maxY = minY-padY, maxY+padY

	var sb strings.Builder
	writeHeader(&sb, float64(width), float64(height))
	fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\" d=\"", stroke)
	for i := range xs {
		x := (xs[i] - minX) / (maxX - minX) * float64(width)
		y := float64(height) - (ys[i]-minY)/(maxY-minY)*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n</svg>\n")
	return sb.String(), nil
}

// WriteSnapshot renders particle positions inside their box as SVG.
func WriteSnapshot(w io.Writer, positions [][]float64, extents []float64, cellsX, cellsY int, scale float64) error {
	canvas := viz.NewCanvas(cellsX, cellsY)
	viz.RenderParticles(canvas, viz.NewCamera(), positions, extents)
	_, err := io.WriteString(w, CanvasToSVG(canvas, scale))
	return err
}

func writeHeader(sb *strings.Builder, w, h float64) {
	fmt.Fprintf(sb, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"+
		"<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%.0f\" height=\"%.0f\" viewBox=\"0 0 %.0f %.0f\">\n"+
		"<rect width=\"100%%\" height=\"100%%\" fill=\"%s\"/>\n", w, h, w, h, background)
}

func bounds(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
