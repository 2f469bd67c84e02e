package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

const (
	liveWidth   = 70
	liveHeight  = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer draws frames to a terminal as a simulator observer, at most
// frameRate times per second of wall time.
type LiveRenderer struct {
	name      string
	scene     *Scene
	out       io.Writer
	frameRate int
	lastFrame time.Time
	extent    float64
	trail     []Link
}

func NewLiveRenderer(name string, scene *Scene, out io.Writer, frameRate int) *LiveRenderer {
	return &LiveRenderer{
		name:      name,
		scene:     scene,
		out:       out,
		frameRate: max(frameRate, 1),
		trail:     make([]Link, 0, 50),
	}
}

func (r *LiveRenderer) OnStep(x dynamo.State, _ dynamo.Control, t float64) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	f, err := r.scene.Frame(x, t)
	if err != nil {
		return
	}
	if r.extent == 0 {
		r.extent = 1.2 * max(f.Extent(), 0.5)
	}
	if len(f.Links) > 0 {
		r.trail = append(r.trail, f.Links[len(f.Links)-1])
		if len(r.trail) > 40 {
			r.trail = r.trail[1:]
		}
	}
	fmt.Fprint(r.out, r.render(f))
}

func (r *LiveRenderer) render(f Frame) string {
	c := newCanvas(liveWidth, liveHeight, r.extent)
	for _, l := range r.trail {
		c.plot(l.Center, '.')
	}
	f.draw(c)

	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  %s  t=%.2fs\n", r.name, f.Time))
	b.WriteString("  " + strings.Repeat("-", liveWidth) + "\n")
	b.WriteString(c.rows("  "))
	b.WriteString("  " + strings.Repeat("-", liveWidth) + "\n")
	b.WriteString(fmt.Sprintf("  KE=%.4f PE=%.4f E=%.6f\n", f.KE, f.PE, f.KE+f.PE))
	return b.String()
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
