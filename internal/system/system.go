// Package system wires a matter tree, its force elements and a State into
// a multibody system an integrator can advance.
package system

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/san-kum/rigidtree/internal/dynamo"
	"github.com/san-kum/rigidtree/internal/forces"
	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
)

// mobilityControl is the actuation applied on top of the force elements,
// one entry per mobility. It is owned at Dynamics.
type mobilityControl []float64

func (c mobilityControl) Clone() mobilityControl { return slices.Clone(c) }

// Counters are cumulative realization counts for one System.
type Counters struct {
	Realizations [stage.NumStages]uint64
	Derivatives  uint64
	Failures     uint64
}

type Option func(*System)

func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.log = l }
}

// System is a multibody system. It is not safe for concurrent use; build
// one per goroutine.
type System struct {
	tree   *matter.Tree
	forces *forces.Set
	log    *slog.Logger

	control state.Discrete[mobilityControl]
	applied state.Cache[matter.Forces]

	proto   *state.State
	scratch *state.State

	counters Counters
	lastErr  error
}

// New realizes the tree's topology. The tree can take no more bodies
// afterwards. fs may be nil for a force-free system.
func New(tree *matter.Tree, fs *forces.Set, opts ...Option) (*System, error) {
	if fs == nil {
		fs = forces.NewSet(tree)
	}
	sys := &System{tree: tree, forces: fs, log: slog.Default()}
	for _, opt := range opts {
		opt(sys)
	}

	sys.proto = state.New()
	if err := sys.Realize(sys.proto, stage.Instance); err != nil {
		return nil, err
	}
	sys.scratch = sys.proto.Clone()

	nq, nu, nz := sys.Split()
	sys.log.Debug("topology realized",
		"bodies", tree.NumBodies()-1,
		"nq", nq, "nu", nu, "nz", nz,
		"quaternions", tree.NumQuaternions(),
		"forces", len(fs.Elements()))
	return sys, nil
}

func (sys *System) Tree() *matter.Tree    { return sys.tree }
func (sys *System) Forces() *forces.Set   { return sys.forces }
func (sys *System) Counters() Counters    { return sys.counters }
func (sys *System) LastError() error      { return sys.lastErr }
func (sys *System) Scratch() *state.State { return sys.scratch }

// NewState returns a fresh state at the default configuration, realized
// to Instance.
func (sys *System) NewState() *state.State { return sys.proto.Clone() }

// Realize brings s up to stage to, computing each stage in order.
func (sys *System) Realize(s *state.State, to stage.Stage) error {
	for st := s.Stage() + 1; st <= to; st++ {
		if err := sys.realizeStage(s, st); err != nil {
			return fmt.Errorf("system: realize %v: %w", st, err)
		}
		s.Advance(st)
		sys.counters.Realizations[st]++
	}
	return nil
}

func (sys *System) realizeStage(s *state.State, st stage.Stage) error {
	var applied *matter.Forces
	if st == stage.Acceleration {
		applied = sys.applied.Value(s, "applied forces")
	}
	if err := sys.tree.RealizeStage(s, st, applied); err != nil {
		return err
	}

	switch st {
	case stage.Topology:
		if err := sys.forces.RealizeTopology(s); err != nil {
			return err
		}
		var err error
		sys.control, err = state.AllocateDiscrete(s, stage.Dynamics, make(mobilityControl, sys.tree.NU()))
		if err != nil {
			return err
		}
		sys.applied, err = state.AllocateCache(s, stage.Dynamics, func() matter.Forces {
			return *sys.tree.NewForces()
		})
		return err
	case stage.Dynamics:
		e := sys.applied.Entry(s)
		f := e.Upd()
		sys.forces.CalcForces(s, f)
		for i, c := range sys.control.Get(s) {
			f.Mobility[i] += c
		}
		e.MarkValid(s.Ledger())
	}
	return nil
}

// AppliedForces returns the accumulated element and control forces.
// Requires Dynamics.
func (sys *System) AppliedForces(s *state.State) *matter.Forces {
	return sys.applied.Value(s, "applied forces")
}

// SetControl replaces the mobility actuation; nil clears it.
func (sys *System) SetControl(s *state.State, c []float64) error {
	if c == nil {
		c = make([]float64, sys.tree.NU())
	}
	if len(c) != sys.tree.NU() {
		return fmt.Errorf("%w: control has %d entries, want %d", dynamo.ErrDimensionMismatch, len(c), sys.tree.NU())
	}
	sys.control.Set(s, mobilityControl(slices.Clone(c)))
	return nil
}

func (sys *System) Control(s *state.State) []float64 { return sys.control.Get(s) }

// Split reports the [q; u; z] layout of the integration vector.
func (sys *System) Split() (nq, nu, nz int) {
	return sys.proto.NQ(), sys.proto.NU(), sys.proto.NZ()
}

func (sys *System) StateDim() int {
	nq, nu, nz := sys.Split()
	return nq + nu + nz
}

func (sys *System) ControlDim() int { return sys.tree.NU() }

// Pack copies s's continuous variables into a new integration vector.
func (sys *System) Pack(s *state.State) dynamo.State {
	x := make(dynamo.State, 0, sys.StateDim())
	x = append(x, s.Q()...)
	x = append(x, s.U()...)
	return append(x, s.Z()...)
}

// Unpack loads x and t into s, invalidating whatever they feed.
func (sys *System) Unpack(x dynamo.State, t float64, s *state.State) error {
	nq, nu, _ := sys.Split()
	if len(x) != sys.StateDim() {
		return fmt.Errorf("%w: state has %d entries, want %d", dynamo.ErrDimensionMismatch, len(x), sys.StateDim())
	}
	s.SetTime(t)
	if err := s.SetQ(x[:nq]); err != nil {
		return err
	}
	if err := s.SetU(x[nq : nq+nu]); err != nil {
		return err
	}
	return s.SetZ(x[nq+nu:])
}

func (sys *System) load(x dynamo.State, c dynamo.Control, t float64) error {
	s := sys.scratch
	if err := sys.Unpack(x, t, s); err != nil {
		return err
	}
	if len(c) == 0 {
		c = nil
	}
	return sys.SetControl(s, c)
}

func (sys *System) fail(err error, n int) dynamo.State {
	sys.lastErr = err
	sys.counters.Failures++
	out := make(dynamo.State, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Derive returns [qdot; udot; zdot]. A failed evaluation yields a NaN
// vector; LastError holds the cause.
func (sys *System) Derive(x dynamo.State, c dynamo.Control, t float64) dynamo.State {
	dx, _ := sys.derive(x, c, t, false)
	return dx
}

// Accelerations returns the derivative together with qdotdot.
func (sys *System) Accelerations(x dynamo.State, c dynamo.Control, t float64) (dynamo.State, []float64) {
	return sys.derive(x, c, t, true)
}

func (sys *System) derive(x dynamo.State, c dynamo.Control, t float64, second bool) (dynamo.State, []float64) {
	sys.counters.Derivatives++
	n := sys.StateDim()
	nq, nu, _ := sys.Split()
	if err := sys.load(x, c, t); err != nil {
		return sys.fail(err, n), nil
	}
	s := sys.scratch
	if err := sys.Realize(s, stage.Acceleration); err != nil {
		return sys.fail(fmt.Errorf("%w: %w", dynamo.ErrDerivative, err), n), nil
	}
	sys.lastErr = nil

	dx := make(dynamo.State, n)
	copy(dx[:nq], sys.tree.QDot(s))
	copy(dx[nq:nq+nu], sys.tree.UDot(s))
	sys.forces.CalcZDot(s, dx[nq+nu:])
	if !second {
		return dx, nil
	}
	return dx, slices.Clone(sys.tree.QDotDot(s))
}

// Project normalizes quaternions in x and strips their radial component
// from xErr, which may be nil.
func (sys *System) Project(x, xErr dynamo.State) bool {
	nq, _, _ := sys.Split()
	var qErr []float64
	if xErr != nil {
		qErr = xErr[:nq]
	}
	return sys.tree.EnforceQuaternionConstraints(x[:nq], qErr)
}

// QuaternionError is the largest | |q|-1 | over x's quaternions.
func (sys *System) QuaternionError(x dynamo.State) float64 {
	nq, _, _ := sys.Split()
	m := 0.0
	for _, e := range sys.tree.QuaternionErrors(x[:nq]) {
		m = math.Max(m, math.Abs(e))
	}
	return m
}

// Energy is kinetic plus potential energy at x.
func (sys *System) Energy(x dynamo.State) float64 {
	s := sys.scratch
	if err := sys.Unpack(x, s.Time(), s); err != nil {
		return math.NaN()
	}
	return sys.EnergyOf(s)
}

// EnergyOf realizes s to Velocity and returns KE + PE.
func (sys *System) EnergyOf(s *state.State) float64 {
	if err := sys.Realize(s, stage.Velocity); err != nil {
		return math.NaN()
	}
	return sys.tree.KineticEnergy(s) + sys.forces.PotentialEnergy(s)
}

// Evaluations reports lazy-cache evaluation counts on the scratch state:
// the tree's articulated inertias and dynamics terms, plus any force
// element that counts its own.
func (sys *System) Evaluations() map[string]uint64 {
	s := sys.scratch
	out := map[string]uint64{
		"articulated":    sys.tree.ArticulatedEvaluations(s),
		"dynamics_terms": sys.tree.DynamicsEvaluations(s),
	}
	for _, e := range sys.forces.Elements() {
		if c, ok := e.(interface{ NumEvaluations(*state.State) uint64 }); ok {
			out[e.Name()] = c.NumEvaluations(s)
		}
	}
	return out
}

var (
	_ dynamo.SecondOrder = (*System)(nil)
	_ dynamo.Projector   = (*System)(nil)
	_ dynamo.Hamiltonian = (*System)(nil)
)
