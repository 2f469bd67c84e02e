package matter

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
)

// Per-state cache records, indexed by body. Every spatial quantity is
// about the body origin and expressed in Ground.

// PositionCache is computed when Position is realized.
type PositionCache struct {
	X_FM []spatial.Transform
	X_PB []spatial.Transform
	X_GB []spatial.Transform
	R_GF []spatial.Mat33
	// L is p_PB_G, the shift vector used by Phi.
	L    []spatial.Vec3
	P_MB []spatial.Vec3
	COM  []spatial.Vec3
	Mk   []spatial.SpatialMat
	// HFM are the mobilizer's own columns in F; H the same columns
	// re-expressed in Ground and moved to the body origin.
	HFM []mobilizer.Jacobian
	H   []mobilizer.Jacobian
}

// VelocityCache is computed when Velocity is realized.
type VelocityCache struct {
	V_FM []spatial.SpatialVec
	V_PB []spatial.SpatialVec
	V_GB []spatial.SpatialVec
	QDot []float64
}

// DynamicsCache holds the velocity-dependent force and acceleration terms.
// It is evaluated on first use after Velocity and always by Dynamics.
type DynamicsCache struct {
	Gyroscopic       []spatial.SpatialVec
	Coriolis         []spatial.SpatialVec
	TotalCoriolis    []spatial.SpatialVec
	Centrifugal      []spatial.SpatialVec
	TotalCentrifugal []spatial.SpatialVec
}

// ArticulatedCache is the articulated-body factorization. It depends only
// on Position and is evaluated on first use.
type ArticulatedCache struct {
	P      []spatial.SpatialMat
	D      []spatial.SmallMat
	DI     []spatial.SmallMat
	G      []mobilizer.Jacobian
	TauBar []spatial.SpatialMat
	PPlus  []spatial.SpatialMat
	// Err is set when some D could not be inverted.
	Err error
}

// AccelerationCache is computed when Acceleration is realized.
type AccelerationCache struct {
	UDot    []float64
	QDotDot []float64
	A_GB    []spatial.SpatialVec
}

// layout records where a tree's variables and caches live in a State.
// Every State built for the same tree gets the same layout.
type layout struct {
	qBase, uBase int
	pos          state.Cache[PositionCache]
	vel          state.Cache[VelocityCache]
	dyn          state.Cache[DynamicsCache]
	abi          state.Cache[ArticulatedCache]
	acc          state.Cache[AccelerationCache]
}

func (t *Tree) newPosition() PositionCache {
	n := len(t.nodes)
	return PositionCache{
		X_FM: make([]spatial.Transform, n),
		X_PB: make([]spatial.Transform, n),
		X_GB: make([]spatial.Transform, n),
		R_GF: make([]spatial.Mat33, n),
		L:    make([]spatial.Vec3, n),
		P_MB: make([]spatial.Vec3, n),
		COM:  make([]spatial.Vec3, n),
		Mk:   make([]spatial.SpatialMat, n),
		HFM:  make([]mobilizer.Jacobian, n),
		H:    make([]mobilizer.Jacobian, n),
	}
}

func (t *Tree) newVelocity() VelocityCache {
	n := len(t.nodes)
	return VelocityCache{
		V_FM: make([]spatial.SpatialVec, n),
		V_PB: make([]spatial.SpatialVec, n),
		V_GB: make([]spatial.SpatialVec, n),
		QDot: make([]float64, t.nq),
	}
}

func (t *Tree) newDynamics() DynamicsCache {
	n := len(t.nodes)
	return DynamicsCache{
		Gyroscopic:       make([]spatial.SpatialVec, n),
		Coriolis:         make([]spatial.SpatialVec, n),
		TotalCoriolis:    make([]spatial.SpatialVec, n),
		Centrifugal:      make([]spatial.SpatialVec, n),
		TotalCentrifugal: make([]spatial.SpatialVec, n),
	}
}

func (t *Tree) newArticulated() ArticulatedCache {
	n := len(t.nodes)
	return ArticulatedCache{
		P:      make([]spatial.SpatialMat, n),
		D:      make([]spatial.SmallMat, n),
		DI:     make([]spatial.SmallMat, n),
		G:      make([]mobilizer.Jacobian, n),
		TauBar: make([]spatial.SpatialMat, n),
		PPlus:  make([]spatial.SpatialMat, n),
	}
}

func (t *Tree) newAcceleration() AccelerationCache {
	return AccelerationCache{
		UDot:    make([]float64, t.nu),
		QDotDot: make([]float64, t.nq),
		A_GB:    make([]spatial.SpatialVec, len(t.nodes)),
	}
}

// RealizeTopology freezes the tree and allocates its slots and caches in
// s, which must not have reached Topology yet.
func (t *Tree) RealizeTopology(s *state.State) error {
	t.frozen = true
	var (
		lay layout
		err error
	)
	if lay.qBase, err = s.AllocateQ(t.nq); err != nil {
		return err
	}
	if lay.uBase, err = s.AllocateU(t.nu); err != nil {
		return err
	}
	if lay.pos, err = state.AllocateCache(s, stage.Position, t.newPosition); err != nil {
		return err
	}
	if lay.vel, err = state.AllocateCache(s, stage.Velocity, t.newVelocity); err != nil {
		return err
	}
	if lay.dyn, err = state.AllocateCache(s, stage.Velocity, t.newDynamics); err != nil {
		return err
	}
	if lay.abi, err = state.AllocateCache(s, stage.Position, t.newArticulated); err != nil {
		return err
	}
	if lay.acc, err = state.AllocateCache(s, stage.Acceleration, t.newAcceleration); err != nil {
		return err
	}
	if t.lay == nil {
		t.lay = &lay
	} else if *t.lay != lay {
		return fmt.Errorf("%w: %+v vs %+v", ErrLayoutMismatch, lay, *t.lay)
	}
	copy(t.q(s), t.DefaultQ())
	return nil
}

func (t *Tree) mustLayout(op string) *layout {
	if t.lay == nil {
		panic(&stage.ContractViolation{Op: op, Required: stage.Topology, Current: stage.Empty})
	}
	return t.lay
}

// q and u are the tree's own slices of the state vectors.
func (t *Tree) q(s *state.State) []float64 {
	l := t.mustLayout("matter q")
	return s.Q()[l.qBase : l.qBase+t.nq]
}

func (t *Tree) u(s *state.State) []float64 {
	l := t.mustLayout("matter u")
	return s.U()[l.uBase : l.uBase+t.nu]
}

func (t *Tree) updQ(s *state.State) []float64 {
	l := t.mustLayout("matter updQ")
	return s.UpdQ()[l.qBase : l.qBase+t.nq]
}

func (t *Tree) updU(s *state.State) []float64 {
	l := t.mustLayout("matter updU")
	return s.UpdU()[l.uBase : l.uBase+t.nu]
}

func (n *node) qs(q []float64) []float64 { return q[n.qOff : n.qOff+n.nq] }
func (n *node) us(u []float64) []float64 { return u[n.uOff : n.uOff+n.nu] }

// Cache accessors for callers that need the raw records. They panic if the
// record's stage has not been realized.

func (t *Tree) Position(s *state.State) *PositionCache {
	return t.mustLayout("Position").pos.Value(s, "matter position")
}

func (t *Tree) Velocity(s *state.State) *VelocityCache {
	return t.mustLayout("Velocity").vel.Value(s, "matter velocity")
}

func (t *Tree) Acceleration(s *state.State) *AccelerationCache {
	return t.mustLayout("Acceleration").acc.Value(s, "matter acceleration")
}

// Dynamics evaluates the velocity-dependent terms if they are stale.
func (t *Tree) Dynamics(s *state.State) *DynamicsCache {
	return t.mustLayout("Dynamics").dyn.Get(s, "matter dynamics terms", func(d *DynamicsCache) {
		t.calcDynamicsTerms(s, d)
	})
}

// Articulated evaluates the articulated-body inertias if they are stale.
func (t *Tree) Articulated(s *state.State) *ArticulatedCache {
	return t.mustLayout("Articulated").abi.Get(s, "matter articulated inertia", func(a *ArticulatedCache) {
		t.calcArticulated(s, a)
	})
}

// ArticulatedEvaluations and DynamicsEvaluations report how many times the
// lazy entries were computed in s.
func (t *Tree) ArticulatedEvaluations(s *state.State) uint64 {
	return t.mustLayout("Articulated").abi.EvaluationCount(s)
}

func (t *Tree) DynamicsEvaluations(s *state.State) uint64 {
	return t.mustLayout("Dynamics").dyn.EvaluationCount(s)
}
