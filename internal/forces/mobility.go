package forces

import (
	"fmt"
	"math"

	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
)

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// checkAxis validates a (body, mobility) pair. Springs act on q, so they
// additionally need qdot == u on that body.
func checkAxis(tree *matter.Tree, b matter.BodyIndex, axis int, onQ bool) error {
	if b <= matter.GroundIndex || int(b) >= tree.NumBodies() {
		return fmt.Errorf("%w: %d", matter.ErrBadBody, b)
	}
	_, nu := tree.USlot(b)
	if axis < 0 || axis >= nu {
		return fmt.Errorf("%w: axis %d of body %d (%d mobilities)", matter.ErrBadAxis, axis, b, nu)
	}
	if onQ && !tree.Mobilizer(b).QDotIsU() {
		return fmt.Errorf("%w: body %d has qdot != u", ErrBadParameter, b)
	}
	return nil
}

// MobilityLinearSpring pulls one coordinate toward q0 with stiffness k.
type MobilityLinearSpring struct {
	tree *matter.Tree
	body matter.BodyIndex
	axis int
	k    float64
	q0   float64
}

func NewMobilityLinearSpring(tree *matter.Tree, b matter.BodyIndex, axis int, k, q0 float64) (*MobilityLinearSpring, error) {
	if err := checkAxis(tree, b, axis, true); err != nil {
		return nil, err
	}
	if !finite(k, q0) || k < 0 {
		return nil, fmt.Errorf("%w: stiffness %g, rest %g", ErrBadParameter, k, q0)
	}
	return &MobilityLinearSpring{tree: tree, body: b, axis: axis, k: k, q0: q0}, nil
}

func (e *MobilityLinearSpring) Name() string {
	return fmt.Sprintf("spring[%s.%d]", e.tree.Name(e.body), e.axis)
}

func (e *MobilityLinearSpring) RealizeTopology(*state.State) error { return nil }

func (e *MobilityLinearSpring) stretch(s *state.State) float64 {
	q, _ := e.tree.MobilizerQ(s, e.body) // body checked at construction
	return q[e.axis] - e.q0
}

func (e *MobilityLinearSpring) CalcForce(s *state.State, f *matter.Forces) {
	off, _ := e.tree.USlot(e.body)
	f.Mobility[off+e.axis] -= e.k * e.stretch(s)
}

func (e *MobilityLinearSpring) PotentialEnergy(s *state.State) float64 {
	x := e.stretch(s)
	return 0.5 * e.k * x * x
}

// MobilityLinearDamper resists one speed with coefficient c. It integrates
// its dissipated energy into a z variable, so that kinetic plus potential
// plus dissipated energy is conserved.
type MobilityLinearDamper struct {
	tree *matter.Tree
	body matter.BodyIndex
	axis int
	c    float64
	zOff int
}

func NewMobilityLinearDamper(tree *matter.Tree, b matter.BodyIndex, axis int, c float64) (*MobilityLinearDamper, error) {
	if err := checkAxis(tree, b, axis, false); err != nil {
		return nil, err
	}
	if !finite(c) || c < 0 {
		return nil, fmt.Errorf("%w: damping %g", ErrBadParameter, c)
	}
	return &MobilityLinearDamper{tree: tree, body: b, axis: axis, c: c, zOff: -1}, nil
}

func (e *MobilityLinearDamper) Name() string {
	return fmt.Sprintf("damper[%s.%d]", e.tree.Name(e.body), e.axis)
}

func (e *MobilityLinearDamper) RealizeTopology(s *state.State) error {
	off, err := s.AllocateZ(1)
	if err != nil {
		return err
	}
	e.zOff = off
	return nil
}

func (e *MobilityLinearDamper) speed(s *state.State) float64 {
	u, _ := e.tree.MobilizerU(s, e.body)
	return u[e.axis]
}

func (e *MobilityLinearDamper) CalcForce(s *state.State, f *matter.Forces) {
	off, _ := e.tree.USlot(e.body)
	f.Mobility[off+e.axis] -= e.c * e.speed(s)
}

func (e *MobilityLinearDamper) PotentialEnergy(*state.State) float64 { return 0 }

func (e *MobilityLinearDamper) CalcZDot(s *state.State, zdot []float64) {
	u := e.speed(s)
	zdot[e.zOff] = e.c * u * u
}

// Dissipated reads the energy removed so far.
func (e *MobilityLinearDamper) Dissipated(s *state.State) float64 {
	return s.Z()[e.zOff]
}

// MobilityConstantForce applies a fixed generalized force to one mobility.
type MobilityConstantForce struct {
	tree *matter.Tree
	body matter.BodyIndex
	axis int
	f    float64
}

func NewMobilityConstantForce(tree *matter.Tree, b matter.BodyIndex, axis int, f float64) (*MobilityConstantForce, error) {
	if err := checkAxis(tree, b, axis, false); err != nil {
		return nil, err
	}
	if !finite(f) {
		return nil, fmt.Errorf("%w: force %g", ErrBadParameter, f)
	}
	return &MobilityConstantForce{tree: tree, body: b, axis: axis, f: f}, nil
}

func (e *MobilityConstantForce) Name() string {
	return fmt.Sprintf("mobility_force[%s.%d]", e.tree.Name(e.body), e.axis)
}

func (e *MobilityConstantForce) RealizeTopology(*state.State) error { return nil }

func (e *MobilityConstantForce) CalcForce(s *state.State, f *matter.Forces) {
	off, _ := e.tree.USlot(e.body)
	f.Mobility[off+e.axis] += e.f
}

func (e *MobilityConstantForce) PotentialEnergy(*state.State) float64 { return 0 }

// ConstantTorque applies a fixed torque, expressed in Ground, to a body.
type ConstantTorque struct {
	tree   *matter.Tree
	body   matter.BodyIndex
	torque spatial.Vec3
}

func NewConstantTorque(tree *matter.Tree, b matter.BodyIndex, torque spatial.Vec3) (*ConstantTorque, error) {
	if b <= matter.GroundIndex || int(b) >= tree.NumBodies() {
		return nil, fmt.Errorf("%w: %d", matter.ErrBadBody, b)
	}
	if !torque.IsFinite() {
		return nil, fmt.Errorf("%w: torque %v", ErrBadParameter, torque)
	}
	return &ConstantTorque{tree: tree, body: b, torque: torque}, nil
}

func (e *ConstantTorque) Name() string { return fmt.Sprintf("torque[%s]", e.tree.Name(e.body)) }

func (e *ConstantTorque) RealizeTopology(*state.State) error { return nil }

func (e *ConstantTorque) CalcForce(_ *state.State, f *matter.Forces) {
	f.Body[e.body].Ang = f.Body[e.body].Ang.Add(e.torque)
}

func (e *ConstantTorque) PotentialEnergy(*state.State) float64 { return 0 }

// ConstantForce applies a fixed Ground-frame force at a station of a body.
type ConstantForce struct {
	tree    *matter.Tree
	body    matter.BodyIndex
	station spatial.Vec3
	force   spatial.Vec3
}

func NewConstantForce(tree *matter.Tree, b matter.BodyIndex, station_B, force_G spatial.Vec3) (*ConstantForce, error) {
	if b <= matter.GroundIndex || int(b) >= tree.NumBodies() {
		return nil, fmt.Errorf("%w: %d", matter.ErrBadBody, b)
	}
	if !station_B.IsFinite() || !force_G.IsFinite() {
		return nil, fmt.Errorf("%w: station %v force %v", ErrBadParameter, station_B, force_G)
	}
	return &ConstantForce{tree: tree, body: b, station: station_B, force: force_G}, nil
}

func (e *ConstantForce) Name() string { return fmt.Sprintf("force[%s]", e.tree.Name(e.body)) }

func (e *ConstantForce) RealizeTopology(*state.State) error { return nil }

func (e *ConstantForce) CalcForce(s *state.State, f *matter.Forces) {
	// arguments were validated at construction
	_ = e.tree.AddInStationForce(s, e.body, e.station, e.force, f)
}

func (e *ConstantForce) PotentialEnergy(*state.State) float64 { return 0 }
