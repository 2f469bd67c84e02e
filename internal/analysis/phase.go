package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type Point struct{ X, Y float64 }

// Portrait is a curve in the plane of two recorded columns.
type Portrait struct {
	XName, YName string
	Points       []Point
}

var ErrLength = errors.New("analysis: series lengths differ")

// NewPortrait pairs two equally long series.
func NewPortrait(xName string, xs []float64, yName string, ys []float64) (*Portrait, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrLength, xName, len(xs), yName, len(ys))
	}
	p := &Portrait{XName: xName, YName: yName, Points: make([]Point, len(xs))}
	for i := range xs {
		p.Points[i] = Point{xs[i], ys[i]}
	}
	return p, nil
}

// Section keeps the (x, y) points where trigger crosses level going up,
// linearly interpolated to the crossing.
func Section(trigger []float64, level float64, xs, ys []float64) ([]Point, error) {
	if len(trigger) != len(xs) || len(xs) != len(ys) {
		return nil, ErrLength
	}
	var pts []Point
	for i := 1; i < len(trigger); i++ {
		a, b := trigger[i-1], trigger[i]
		if !(a < level && b >= level) {
			continue
		}
		f := (level - a) / (b - a)
		pts = append(pts, Point{
			X: xs[i-1] + f*(xs[i]-xs[i-1]),
			Y: ys[i-1] + f*(ys[i]-ys[i-1]),
		})
	}
	return pts, nil
}

type bounds struct{ minX, minY, rangeX, rangeY float64 }

// padded bounds of pts with 10% margins; degenerate ranges become 1.
func boundsOf(pts []Point) bounds {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	return bounds{
		minX:   minX - 0.1*rangeX,
		minY:   minY - 0.1*rangeY,
		rangeX: 1.2 * rangeX,
		rangeY: 1.2 * rangeY,
	}
}

// ASCII draws pts on a width×height grid, early points as '.', the middle
// third as 'o' and the last third as '●', with axes where they cross.
func ASCII(pts []Point, width, height int) string {
	if len(pts) == 0 || width < 2 || height < 2 {
		return ""
	}
	b := boundsOf(pts)
	col := func(x float64) int { return int((x - b.minX) / b.rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-b.minY)/b.rangeY*float64(height-1)) }

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	if c := col(0); b.minX <= 0 && c >= 0 && c < width {
		for r := range grid {
			grid[r][c] = '│'
		}
	}
	if r := row(0); b.minY <= 0 && r >= 0 && r < height {
		for c := range grid[r] {
			if grid[r][c] == '│' {
				grid[r][c] = '┼'
			} else {
				grid[r][c] = '─'
			}
		}
	}
	for i, p := range pts {
		r, c := row(p.Y), col(p.X)
		if r < 0 || r >= height || c < 0 || c >= width {
			continue
		}
		switch {
		case i < len(pts)/3:
			grid[r][c] = '.'
		case i < 2*len(pts)/3:
			grid[r][c] = 'o'
		default:
			grid[r][c] = '●'
		}
	}

	var sb strings.Builder
	for _, r := range grid {
		sb.WriteString(string(r))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// SVG renders pts as one polyline on a dark background.
func SVG(pts []Point, width, height int, stroke string) string {
	if len(pts) < 2 {
		return ""
	}
	b := boundsOf(pts)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, stroke)
	for i, p := range pts {
		x := (p.X - b.minX) / b.rangeX * float64(width)
		y := float64(height) - (p.Y-b.minY)/b.rangeY*float64(height)
		if i > 0 {
			sb.WriteString(" L")
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
	}
	sb.WriteString(`"/>
</svg>
`)
	return sb.String()
}
