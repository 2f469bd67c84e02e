package matter

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
)

// Kinematic queries. A body index outside the tree is rejected with
// ErrBadBody; asking before the needed stage is a contract violation.

// BodyTransform returns X_GB. Requires Position.
func (t *Tree) BodyTransform(s *state.State, b BodyIndex) (spatial.Transform, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Transform{}, err
	}
	return t.Position(s).X_GB[b], nil
}

// MobilizerTransform returns X_FM. Requires Position.
func (t *Tree) MobilizerTransform(s *state.State, b BodyIndex) (spatial.Transform, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Transform{}, err
	}
	return t.Position(s).X_FM[b], nil
}

// BodyVelocity returns V_GB. Requires Velocity.
func (t *Tree) BodyVelocity(s *state.State, b BodyIndex) (spatial.SpatialVec, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.SpatialVec{}, err
	}
	return t.Velocity(s).V_GB[b], nil
}

// MobilizerVelocity returns V_FM expressed in F. Requires Velocity.
func (t *Tree) MobilizerVelocity(s *state.State, b BodyIndex) (spatial.SpatialVec, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.SpatialVec{}, err
	}
	return t.Velocity(s).V_FM[b], nil
}

// BodyAcceleration returns A_GB. Requires Acceleration.
func (t *Tree) BodyAcceleration(s *state.State, b BodyIndex) (spatial.SpatialVec, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.SpatialVec{}, err
	}
	return t.Acceleration(s).A_GB[b], nil
}

// StationLocation maps a point fixed on b to Ground.
func (t *Tree) StationLocation(s *state.State, b BodyIndex, station_B spatial.Vec3) (spatial.Vec3, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Vec3{}, err
	}
	return t.Position(s).X_GB[b].Station(station_B), nil
}

// StationVelocity is the Ground velocity of a point fixed on b.
func (t *Tree) StationVelocity(s *state.State, b BodyIndex, station_B spatial.Vec3) (spatial.Vec3, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Vec3{}, err
	}
	r := t.Position(s).X_GB[b].R.MulVec(station_B)
	return spatial.ShiftVelocity(r, t.Velocity(s).V_GB[b]).Lin, nil
}

// StationAcceleration is the Ground acceleration of a point fixed on b.
func (t *Tree) StationAcceleration(s *state.State, b BodyIndex, station_B spatial.Vec3) (spatial.Vec3, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Vec3{}, err
	}
	r := t.Position(s).X_GB[b].R.MulVec(station_B)
	w := t.Velocity(s).V_GB[b].Ang
	A := t.Acceleration(s).A_GB[b]
	return A.Lin.Add(A.Ang.Cross(r)).Add(w.Cross(w.Cross(r))), nil
}

// MassCenterLocation returns b's mass center in Ground.
func (t *Tree) MassCenterLocation(s *state.State, b BodyIndex) (spatial.Vec3, error) {
	if err := t.checkBody(b); err != nil {
		return spatial.Vec3{}, err
	}
	return t.massCenter(s, b), nil
}

func (t *Tree) massCenter(s *state.State, b BodyIndex) spatial.Vec3 {
	return t.Position(s).X_GB[b].Station(t.nodes[b].mass.COM)
}

// SystemMassCenter is the mass-weighted mean of the body mass centers.
func (t *Tree) SystemMassCenter(s *state.State) spatial.Vec3 {
	var c spatial.Vec3
	m := t.TotalMass()
	if m == 0 {
		return c
	}
	for i := 1; i < len(t.nodes); i++ {
		c = c.Add(t.massCenter(s, BodyIndex(i)).Scale(t.nodes[i].mass.Mass))
	}
	return c.Scale(1 / m)
}

// MobilizerQ returns b's coordinates as stored in s. Do not modify.
func (t *Tree) MobilizerQ(s *state.State, b BodyIndex) ([]float64, error) {
	if err := t.checkBody(b); err != nil {
		return nil, err
	}
	return t.nodes[b].qs(t.q(s)), nil
}

func (t *Tree) MobilizerU(s *state.State, b BodyIndex) ([]float64, error) {
	if err := t.checkBody(b); err != nil {
		return nil, err
	}
	return t.nodes[b].us(t.u(s)), nil
}

// SetOneQ sets coordinate axis of body b and invalidates Position.
func (t *Tree) SetOneQ(s *state.State, b BodyIndex, axis int, v float64) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	if axis < 0 || axis >= n.nq {
		return fmt.Errorf("%w: body %q has %d coordinates, got axis %d", ErrBadAxis, n.name, n.nq, axis)
	}
	n.qs(t.updQ(s))[axis] = v
	return nil
}

// SetOneU sets speed axis of body b and invalidates Velocity.
func (t *Tree) SetOneU(s *state.State, b BodyIndex, axis int, v float64) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	if axis < 0 || axis >= n.nu {
		return fmt.Errorf("%w: body %q has %d speeds, got axis %d", ErrBadAxis, n.name, n.nu, axis)
	}
	n.us(t.updU(s))[axis] = v
	return nil
}

// SetMobilizerQ replaces b's coordinates.
func (t *Tree) SetMobilizerQ(s *state.State, b BodyIndex, q []float64) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	if err := t.checkLen("q", len(q), n.nq); err != nil {
		return err
	}
	copy(n.qs(t.updQ(s)), q)
	return nil
}

func (t *Tree) SetMobilizerU(s *state.State, b BodyIndex, u []float64) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	if err := t.checkLen("u", len(u), n.nu); err != nil {
		return err
	}
	copy(n.us(t.updU(s)), u)
	return nil
}

// SetQToFitTransform sets b's coordinates so X_FM best matches X_FM.
func (t *Tree) SetQToFitTransform(s *state.State, b BodyIndex, X_FM spatial.Transform) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetQToFitTransform(X_FM, n.qs(t.updQ(s)))
	return nil
}

func (t *Tree) SetQToFitRotation(s *state.State, b BodyIndex, R_FM spatial.Mat33) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetQToFitRotation(R_FM, n.qs(t.updQ(s)))
	return nil
}

func (t *Tree) SetQToFitTranslation(s *state.State, b BodyIndex, p_FM spatial.Vec3) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetQToFitTranslation(p_FM, n.qs(t.updQ(s)))
	return nil
}

// SetUToFitVelocity sets b's speeds so V_FM best matches V_FM, using the
// coordinates currently in s.
func (t *Tree) SetUToFitVelocity(s *state.State, b BodyIndex, V_FM spatial.SpatialVec) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetUToFitVelocity(n.qs(t.q(s)), V_FM, n.us(t.updU(s)))
	return nil
}

func (t *Tree) SetUToFitAngularVelocity(s *state.State, b BodyIndex, w_FM spatial.Vec3) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetUToFitAngularVelocity(n.qs(t.q(s)), w_FM, n.us(t.updU(s)))
	return nil
}

func (t *Tree) SetUToFitLinearVelocity(s *state.State, b BodyIndex, v_FM spatial.Vec3) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	n.mob.SetUToFitLinearVelocity(n.qs(t.q(s)), v_FM, n.us(t.updU(s)))
	return nil
}
