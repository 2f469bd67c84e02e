package tui

import (
	"math"
	"strings"

	"github.com/san-kum/rigidtree/internal/spatial"
)

// canvas is a character grid with a world-to-cell projection of the
// ground XY plane, X right and Y up. Cells are about twice as tall as
// they are wide, so X is stretched by two.
type canvas struct {
	w, h  int
	cells [][]rune
	scale float64
	cx    int
	cy    int
}

func newCanvas(w, h int, extent float64) *canvas {
	c := &canvas{w: w, h: h, cx: w / 2, cy: h / 2}
	c.cells = make([][]rune, h)
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	if extent <= 0 {
		extent = 1
	}
	c.scale = math.Min(float64(w)/4, float64(h)/2) / extent
	c.clear()
	return c
}

func (c *canvas) clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *canvas) project(p spatial.Vec3) (int, int) {
	x := c.cx + int(math.Round(2*c.scale*p[0]))
	y := c.cy - int(math.Round(c.scale*p[1]))
	return x, y
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *canvas) plot(p spatial.Vec3, r rune) {
	x, y := c.project(p)
	c.set(x, y, r)
}

func (c *canvas) segment(a, b spatial.Vec3, r rune) {
	x1, y1 := c.project(a)
	x2, y2 := c.project(b)
	c.line(x1, y1, x2, y2, r)
}

// line is Bresenham's.
func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) rows(indent string) string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(indent)
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	return b.String()
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[max(0, min(idx, 7))])
	}
	return sb.String()
}
