package matter

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
)

// Forces are the applied-force accumulators force elements add into. Body
// holds one spatial force per body, about the body origin and expressed in
// Ground; Mobility holds one generalized force per speed. Ground's entry
// is ignored.
type Forces struct {
	Body     []spatial.SpatialVec
	Mobility []float64
}

func (t *Tree) NewForces() *Forces {
	return &Forces{
		Body:     make([]spatial.SpatialVec, len(t.nodes)),
		Mobility: make([]float64, t.nu),
	}
}

// Reset zeroes both accumulators.
func (f *Forces) Reset() {
	clear(f.Body)
	clear(f.Mobility)
}

// Add accumulates o into f.
func (f *Forces) Add(o *Forces) {
	for i := range f.Body {
		f.Body[i] = f.Body[i].Add(o.Body[i])
	}
	for i := range f.Mobility {
		f.Mobility[i] += o.Mobility[i]
	}
}

func (f *Forces) Clone() *Forces {
	return &Forces{
		Body:     append([]spatial.SpatialVec(nil), f.Body...),
		Mobility: append([]float64(nil), f.Mobility...),
	}
}

// AddInStationForce applies force_G at the point station_B fixed on body b.
// Requires Position.
func (t *Tree) AddInStationForce(s *state.State, b BodyIndex, station_B, force_G spatial.Vec3, f *Forces) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	if !station_B.IsFinite() || !force_G.IsFinite() {
		return fmt.Errorf("matter: non-finite station force on body %d", b)
	}
	r := t.Position(s).X_GB[b].R.MulVec(station_B)
	f.Body[b] = f.Body[b].Add(spatial.ShiftForce(r, spatial.SpatialVec{Lin: force_G}))
	return nil
}

// AddInBodyTorque applies a pure torque, expressed in Ground, to body b.
func (t *Tree) AddInBodyTorque(b BodyIndex, torque_G spatial.Vec3, f *Forces) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	if !torque_G.IsFinite() {
		return fmt.Errorf("matter: non-finite torque on body %d", b)
	}
	f.Body[b].Ang = f.Body[b].Ang.Add(torque_G)
	return nil
}

// AddInMobilityForce adds v to the generalized force of speed axis of
// body b's mobilizer.
func (t *Tree) AddInMobilityForce(b BodyIndex, axis int, v float64, f *Forces) error {
	if err := t.checkBody(b); err != nil {
		return err
	}
	n := &t.nodes[b]
	if axis < 0 || axis >= n.nu {
		return fmt.Errorf("%w: body %q has %d speeds, got axis %d", ErrBadAxis, n.name, n.nu, axis)
	}
	f.Mobility[n.uOff+axis] += v
	return nil
}

// AddInGravity applies m*g at every body's mass center, g in Ground.
// Requires Position.
func (t *Tree) AddInGravity(s *state.State, g spatial.Vec3, f *Forces) {
	pc := t.Position(s)
	for i := 1; i < len(t.nodes); i++ {
		m := t.nodes[i].mass.Mass
		if m == 0 {
			continue
		}
		f.Body[i] = f.Body[i].Add(spatial.ShiftForce(pc.COM[i], spatial.SpatialVec{Lin: g.Scale(m)}))
	}
}
