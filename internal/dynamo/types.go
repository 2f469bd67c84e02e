package dynamo

import (
	"fmt"
	"math"
)

// State is the flat vector advanced by an integrator. Multibody systems
// lay it out as [q; u; z].
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Axpy returns s + a*d.
func (s State) Axpy(a float64, d State) State {
	out := make(State, len(s))
	for i := range s {
		out[i] = s[i] + a*d[i]
	}
	return out
}

// Sub returns s - o.
func (s State) Sub(o State) State { return s.Axpy(-1, o) }

// MaxScaled is max |e_i| / (|s_i| + floor), the usual relative error norm.
func (s State) MaxScaled(e State, floor float64) float64 {
	m := 0.0
	for i := range e {
		m = math.Max(m, math.Abs(e[i])/(math.Abs(s[i])+floor))
	}
	return m
}

// Control is one generalized actuation force per mobility.
type Control []float64

type System interface {
	Derive(x State, c Control, t float64) State
	StateDim() int
	ControlDim() int
}

// SecondOrder systems split the state into q (nq), u (nu) and auxiliary z
// (nz). nq may exceed nu when orientations are held as quaternions.
type SecondOrder interface {
	System
	Split() (nq, nu, nz int)
	// Accelerations returns the full derivative and qdotdot at x.
	Accelerations(x State, c Control, t float64) (dx State, qdotdot []float64)
}

// Projector systems carry coordinates constrained to a manifold, such as
// unit quaternions.
type Projector interface {
	// Project moves x back onto the manifold in place and, when xErr is
	// non-nil, removes the manifold-normal part of the error estimate.
	// It reports whether anything changed.
	Project(x, xErr State) bool
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, c Control, t float64, dt float64) State
}

// AdaptiveIntegrator steps with error control. It returns the candidate
// state, the suggested next step, and ErrStepRejected if the candidate
// must be discarded and retried with the suggestion.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, c Control, t, dt, tol float64) (State, float64, error)
}

type Controller interface {
	Compute(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, c Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, c Control, t float64)
}

type Config struct {
	Dt            float64
	Duration      float64
	Seed          int64
	Tolerance     float64
	MaxDt         float64
	MinDt         float64
	Adaptive      bool
	ValidateState bool
	// Project calls the system's Projector after every accepted step.
	Project bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		Tolerance:     1e-6,
		MaxDt:         0.1,
		MinDt:         1e-8,
		Adaptive:      false,
		ValidateState: true,
		Project:       true,
	}
}

func (c Config) Validate() error {
	switch {
	case !(c.Dt > 0):
		return fmt.Errorf("%w: dt must be positive, got %g", ErrBadConfig, c.Dt)
	case !(c.Duration > 0):
		return fmt.Errorf("%w: duration must be positive, got %g", ErrBadConfig, c.Duration)
	case c.Adaptive && !(c.Tolerance > 0):
		return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", ErrBadConfig)
	case c.Adaptive && !(c.MinDt > 0 && c.MinDt <= c.MaxDt):
		return fmt.Errorf("%w: need 0 < min dt <= max dt, got %g, %g", ErrBadConfig, c.MinDt, c.MaxDt)
	}
	return nil
}

type Result struct {
	States      []State
	Controls    []Control
	Times       []float64
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Rejected    int
	Projections int
	Errors      []error
}

// Final returns the last recorded state, or nil for an empty result.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
