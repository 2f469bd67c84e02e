package analysis

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/rigidtree/internal/config"
	"github.com/san-kum/rigidtree/internal/experiment"
)

func TestDominantFrequency(t *testing.T) {
	dt := 0.01
	samples := make([]float64, 500)
	for i := range samples {
		samples[i] = 3 + math.Sin(2*math.Pi*2*float64(i)*dt)
	}
	p := DominantFrequency(samples, dt)
	// bins are 1/(500*0.01) Hz wide; 2 Hz is bin 10
	if math.Abs(p.Frequency-2) > 1e-9 {
		t.Errorf("frequency = %v, want 2", p.Frequency)
	}
	if p.Power <= 0 {
		t.Errorf("power = %v", p.Power)
	}
	if got := DominantFrequency(nil, dt); got != (Peak{}) {
		t.Errorf("empty signal peak = %+v", got)
	}
}

func TestPowerSpectrumAnyLength(t *testing.T) {
	// 3 cycles over 30 samples lands in bin 3
	data := make([]float64, 30)
	for i := range data {
		data[i] = math.Cos(2 * math.Pi * 3 * float64(i) / 30)
	}
	ps := PowerSpectrum(data)
	if len(ps) != 15 {
		t.Fatalf("%d bins, want 15", len(ps))
	}
	if math.Abs(ps[3]-15) > 1e-9 || ps[0] > 1e-9 {
		t.Errorf("bins 0, 3 = %v, %v; want 0, 15", ps[0], ps[3])
	}
}

func TestSampleInterval(t *testing.T) {
	if got := SampleInterval([]float64{0, 0.1, 0.2, 0.3}); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("interval = %v", got)
	}
	if SampleInterval([]float64{1}) != 0 {
		t.Error("single sample has an interval")
	}
}

func TestSection(t *testing.T) {
	n := 1000
	trig, xs, ys := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range n {
		tm := float64(i) * 0.01
		trig[i] = math.Sin(2 * math.Pi * tm)
		xs[i] = tm
		ys[i] = math.Cos(2 * math.Pi * tm)
	}
	pts, err := Section(trig, 0, xs, ys)
	if err != nil {
		t.Fatal(err)
	}
	// upward crossings at t = 1..9; t = 0 is the first sample
	if len(pts) != 9 {
		t.Fatalf("%d crossings, want 9", len(pts))
	}
	for i, p := range pts {
		if math.Abs(p.X-float64(i+1)) > 1e-3 || math.Abs(p.Y-1) > 1e-3 {
			t.Errorf("crossing %d at %+v", i, p)
		}
	}
	if _, err := Section(trig, 0, xs, ys[:1]); err == nil {
		t.Error("mismatched lengths accepted")
	}
}

func TestPortraitRendering(t *testing.T) {
	if _, err := NewPortrait("a", []float64{1}, "b", nil); err == nil {
		t.Error("mismatched lengths accepted")
	}
	xs, ys := make([]float64, 90), make([]float64, 90)
	for i := range xs {
		a := float64(i) / 90 * 2 * math.Pi
		xs[i], ys[i] = math.Cos(a), math.Sin(a)
	}
	p, err := NewPortrait("q", xs, "u", ys)
	if err != nil {
		t.Fatal(err)
	}

	art := ASCII(p.Points, 40, 20)
	if lines := strings.Split(strings.TrimSuffix(art, "\n"), "\n"); len(lines) != 20 {
		t.Errorf("%d rows, want 20", len(lines))
	}
	for _, r := range []string{".", "o", "●", "┼"} {
		if !strings.Contains(art, r) {
			t.Errorf("portrait missing %q:\n%s", r, art)
		}
	}

	svg := SVG(p.Points, 200, 100, "#0ff")
	if !strings.HasPrefix(svg, "<?xml") || strings.Count(svg, " L") != 89 {
		t.Errorf("svg:\n%s", svg)
	}
	if SVG(p.Points[:1], 200, 100, "#0ff") != "" {
		t.Error("one point drew a path")
	}
}

func TestSensitivity(t *testing.T) {
	reg := experiment.NewRegistry()

	cfg := config.GetPreset("double_pendulum")
	cfg.Duration = 3
	divs, err := Sensitivity(context.Background(), cfg, reg, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	if len(divs) != 2 {
		t.Fatalf("%d divergences, want one per q", len(divs))
	}
	if l := Largest(divs); !(l.Rate > 0) {
		t.Errorf("double pendulum largest rate = %v, want positive", l.Rate)
	}

	if _, err := Sensitivity(context.Background(), cfg, reg, 0); err == nil {
		t.Error("zero perturbation accepted")
	}
}
