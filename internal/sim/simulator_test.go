package sim

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/integrators"
)

// decay is x' = -x.
type decay struct{}

func (decay) Derive(x dynamo.State, c dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-x[0]}
}

func (decay) StateDim() int   { return 1 }
func (decay) ControlDim() int { return 0 }

type eulerStep struct{}

func (eulerStep) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t float64, dt float64) dynamo.State {
	return x.Axpy(dt, dyn.Derive(x, c, t))
}

func TestSimulatorRun(t *testing.T) {
	sim := New(decay{}, eulerStep{}, nil)

	cfg := dynamo.Config{Dt: 0.1, Duration: 1.0}
	result, err := sim.Run(context.Background(), dynamo.State{1.0}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}
	if got := result.Times[10]; math.Abs(got-1) > 1e-12 {
		t.Errorf("final time %v, want 1", got)
	}

	expected := math.Pow(0.9, 10)
	if got := result.Final()[0]; math.Abs(got-expected) > 1e-12 {
		t.Errorf("expected final state %.6f, got %.6f", expected, got)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(decay{}, eulerStep{}, nil)

	tests := []struct {
		name string
		cfg  dynamo.Config
		x0   dynamo.State
		want error
	}{
		{"zero dt", dynamo.Config{Dt: 0, Duration: 1.0}, dynamo.State{1}, dynamo.ErrBadConfig},
		{"negative dt", dynamo.Config{Dt: -0.1, Duration: 1.0}, dynamo.State{1}, dynamo.ErrBadConfig},
		{"zero duration", dynamo.Config{Dt: 0.1, Duration: 0}, dynamo.State{1}, dynamo.ErrBadConfig},
		{"adaptive without tolerance", dynamo.Config{Dt: 0.1, Duration: 1, Adaptive: true}, dynamo.State{1}, dynamo.ErrBadConfig},
		{"wrong dimension", dynamo.Config{Dt: 0.1, Duration: 1.0}, dynamo.State{1, 2}, dynamo.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.x0, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("want %v, got %v", tt.want, err)
			}
		})
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x dynamo.State, c dynamo.Control, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(decay{}, eulerStep{}, nil)
	metric := &testMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), dynamo.State{1.0}, dynamo.Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
}

// ring rotates on the unit circle; projection rescales onto it.
type ring struct{ projections int }

func (*ring) Derive(x dynamo.State, c dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-x[1], x[0]}
}
func (*ring) StateDim() int   { return 2 }
func (*ring) ControlDim() int { return 0 }
func (r *ring) Project(x, xErr dynamo.State) bool {
	n := x.Norm()
	x[0], x[1] = x[0]/n, x[1]/n
	r.projections++
	return true
}

func TestSimulatorProjectsEveryStep(t *testing.T) {
	dyn := &ring{}
	sim := New(dyn, eulerStep{}, nil)
	cfg := dynamo.Config{Dt: 0.05, Duration: 1, Project: true}

	result, err := sim.Run(context.Background(), dynamo.State{2, 0}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.Projections != result.StepsTaken+1 {
		t.Errorf("projections = %d, want %d", result.Projections, result.StepsTaken+1)
	}
	for _, x := range result.States {
		if math.Abs(x.Norm()-1) > 1e-14 {
			t.Fatalf("state %v left the circle", x)
		}
	}

	cfg.Project = false
	result, _ = sim.Run(context.Background(), dynamo.State{2, 0}, cfg)
	if result.Projections != 0 || result.Final().Norm() <= 2 {
		t.Error("projection ran while disabled")
	}
}

func TestSimulatorAdaptive(t *testing.T) {
	tests := []struct {
		name  string
		integ dynamo.Integrator
	}{
		{"rk45", integrators.NewRK45()},
		{"step doubling", integrators.NewRK4()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := New(decay{}, tt.integ, nil)
			cfg := dynamo.DefaultConfig()
			cfg.Adaptive = true
			cfg.Duration = 2
			cfg.Dt = 0.5
			cfg.Tolerance = 1e-8

			result, err := sim.Run(context.Background(), dynamo.State{1}, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if len(result.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", result.Errors)
			}
			final := result.Times[len(result.Times)-1]
			if math.Abs(final-2) > 1e-12 {
				t.Errorf("ended at t=%v, want 2", final)
			}
			if got := result.Final()[0]; math.Abs(got-math.Exp(-2)) > 1e-6 {
				t.Errorf("x(2) = %v, want %v", got, math.Exp(-2))
			}
		})
	}
}

// blowup returns NaN once t passes 0.5 and reports why.
type blowup struct{ err error }

func (b *blowup) Derive(x dynamo.State, c dynamo.Control, t float64) dynamo.State {
	if t > 0.5 {
		b.err = errors.New("singular articulated inertia at body 3")
		return dynamo.State{math.NaN()}
	}
	return dynamo.State{0}
}
func (*blowup) StateDim() int      { return 1 }
func (*blowup) ControlDim() int    { return 0 }
func (b *blowup) LastError() error { return b.err }

func TestSimulatorAbortsOnInvalidState(t *testing.T) {
	sim := New(&blowup{}, eulerStep{}, nil)
	cfg := dynamo.Config{Dt: 0.1, Duration: 1, ValidateState: true}

	result, err := sim.Run(context.Background(), dynamo.State{1}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("want one error, got %v", result.Errors)
	}
	var se SimError
	if !errors.As(result.Errors[0], &se) || !strings.Contains(se.Message, "singular") {
		t.Errorf("error %v does not carry the system's cause", result.Errors[0])
	}
	if result.StepsTaken != 6 {
		t.Errorf("steps taken %d, want 6", result.StepsTaken)
	}
}

func TestSimulatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(decay{}, eulerStep{}, nil).Run(ctx, dynamo.State{1}, dynamo.Config{Dt: 0.1, Duration: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestRunWithCallback(t *testing.T) {
	sim := New(decay{}, eulerStep{}, nil)
	calls := 0
	err := sim.RunWithCallback(context.Background(), dynamo.State{1}, dynamo.Config{Dt: 0.1, Duration: 1},
		func(x dynamo.State, c dynamo.Control, t float64) bool {
			calls++
			return calls < 5
		})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 5 {
		t.Errorf("callback ran %d times, want 5", calls)
	}
}
