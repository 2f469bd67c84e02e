package matter

import (
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
)

// KineticEnergy sums ½ Vᵀ Mk V over the bodies. Requires Velocity.
func (t *Tree) KineticEnergy(s *state.State) float64 {
	pc := t.Position(s)
	vc := t.Velocity(s)
	var ke float64
	for i := 1; i < len(t.nodes); i++ {
		V := vc.V_GB[i]
		ke += 0.5 * V.Dot(pc.Mk[i].MulVec(V))
	}
	return ke
}

// Momentum is the system's spatial momentum about the Ground origin:
// angular momentum first, then linear. Requires Velocity.
func (t *Tree) Momentum(s *state.State) spatial.SpatialVec {
	pc := t.Position(s)
	vc := t.Velocity(s)
	var h spatial.SpatialVec
	for i := 1; i < len(t.nodes); i++ {
		hb := pc.Mk[i].MulVec(vc.V_GB[i])
		h = h.Add(spatial.ShiftForce(pc.X_GB[i].P, hb))
	}
	return h
}

// GravityPotential is -Σ m g·c for mass centers c measured from the Ground
// origin. Requires Position.
func (t *Tree) GravityPotential(s *state.State, g spatial.Vec3) float64 {
	pc := t.Position(s)
	var pe float64
	for i := 1; i < len(t.nodes); i++ {
		c := pc.X_GB[i].P.Add(pc.COM[i])
		pe -= t.nodes[i].mass.Mass * g.Dot(c)
	}
	return pe
}
