package matter

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/state"
)

func singularAt(n *node, err error) error {
	return fmt.Errorf("%w at body %q (%v mobilizer): %v", ErrSingularInertia, n.name, n.mob, err)
}

func (t *Tree) checkLen(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrLength, what, got, want)
	}
	return nil
}

// CalcAcceleration solves M*udot = f - C(q,u) + Jᵀ*F for udot with the
// two-pass articulated-body recursion, also returning the body spatial
// accelerations A_GB when A is not nil. mobForces and bodyForces may be
// nil. Requires Velocity.
func (t *Tree) CalcAcceleration(s *state.State, mobForces []float64, bodyForces []spatial.SpatialVec, udot []float64, A []spatial.SpatialVec) error {
	if err := t.checkForceLens(mobForces, bodyForces); err != nil {
		return err
	}
	if err := t.checkLen("udot", len(udot), t.nu); err != nil {
		return err
	}
	if A == nil {
		A = make([]spatial.SpatialVec, len(t.nodes))
	} else if err := t.checkLen("A", len(A), len(t.nodes)); err != nil {
		return err
	}
	ac := t.Articulated(s)
	if ac.Err != nil {
		return ac.Err
	}
	dc := t.Dynamics(s)
	pc := t.Position(s)

	z := make([]spatial.SpatialVec, len(t.nodes))
	nuv := make([]float64, t.nu)
	for i := 1; i < len(t.nodes); i++ {
		z[i] = dc.Centrifugal[i]
		if bodyForces != nil {
			z[i] = z[i].Sub(bodyForces[i])
		}
	}
	t.inward(pc, ac, z, mobForces, nuv)
	t.outward(pc, ac, dc.Coriolis, nuv, udot, A)
	return nil
}

// MultiplyByMInv computes M⁻¹*f without forming M. Requires Position.
func (t *Tree) MultiplyByMInv(s *state.State, f, out []float64) error {
	if err := t.checkLen("f", len(f), t.nu); err != nil {
		return err
	}
	if err := t.checkLen("out", len(out), t.nu); err != nil {
		return err
	}
	ac := t.Articulated(s)
	if ac.Err != nil {
		return ac.Err
	}
	pc := t.Position(s)
	z := make([]spatial.SpatialVec, len(t.nodes))
	nuv := make([]float64, t.nu)
	t.inward(pc, ac, z, f, nuv)
	t.outward(pc, ac, nil, nuv, out, make([]spatial.SpatialVec, len(t.nodes)))
	return nil
}

// inward is pass 1: starting from the per-body forces already in z it
// accumulates articulated forces tip to base and leaves D⁻¹*eps in nuv.
func (t *Tree) inward(pc *PositionCache, ac *ArticulatedCache, z []spatial.SpatialVec, tau, nuv []float64) {
	for i := len(t.nodes) - 1; i >= 1; i-- {
		n := &t.nodes[i]
		var eps [spatial.MaxDOF]float64
		for j := 0; j < n.nu; j++ {
			eps[j] = -pc.H[i][j].Dot(z[i])
			if tau != nil {
				eps[j] += tau[n.uOff+j]
			}
		}
		nv := ac.DI[i].MulVec(eps[:n.nu])
		copy(n.us(nuv), nv[:n.nu])
		zPlus := z[i]
		for j := 0; j < n.nu; j++ {
			zPlus = zPlus.Add(ac.G[i][j].Scale(eps[j]))
		}
		if n.parent != GroundIndex {
			z[n.parent] = z[n.parent].Add(spatial.ShiftForce(pc.L[i], zPlus))
		}
	}
}

// outward is pass 2: base to tip it resolves udot from nuv and propagates
// spatial accelerations, adding the coriolis terms a when given.
func (t *Tree) outward(pc *PositionCache, ac *ArticulatedCache, a []spatial.SpatialVec, nuv, udot []float64, A []spatial.SpatialVec) {
	A[0] = spatial.SpatialVec{}
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		alpha := spatial.ShiftVelocity(pc.L[i], A[n.parent])
		ud := n.us(udot)
		for j := 0; j < n.nu; j++ {
			ud[j] = nuv[n.uOff+j] - ac.G[i][j].Dot(alpha)
		}
		Ai := alpha.Add(mobilizer.MulJacobian(pc.H[i], n.nu, ud))
		if a != nil {
			Ai = Ai.Add(a[i])
		}
		A[i] = Ai
	}
}

// MultiplyByM computes M*v with one outward and one inward sweep.
// Requires Position.
func (t *Tree) MultiplyByM(s *state.State, v, out []float64) error {
	if err := t.checkLen("v", len(v), t.nu); err != nil {
		return err
	}
	if err := t.checkLen("out", len(out), t.nu); err != nil {
		return err
	}
	pc := t.Position(s)
	A := make([]spatial.SpatialVec, len(t.nodes))
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		A[i] = spatial.ShiftVelocity(pc.L[i], A[n.parent]).Add(mobilizer.MulJacobian(pc.H[i], n.nu, n.us(v)))
	}
	F := make([]spatial.SpatialVec, len(t.nodes))
	for i := len(t.nodes) - 1; i >= 1; i-- {
		n := &t.nodes[i]
		F[i] = F[i].Add(pc.Mk[i].MulVec(A[i]))
		mobilizer.MulJacobianT(pc.H[i], n.nu, F[i], n.us(out))
		if n.parent != GroundIndex {
			F[n.parent] = F[n.parent].Add(spatial.ShiftForce(pc.L[i], F[i]))
		}
	}
	return nil
}

// CalcM assembles the mass matrix column by column from MultiplyByM.
// Quadratic in the number of speeds; meant for checks and small systems.
func (t *Tree) CalcM(s *state.State) ([][]float64, error) {
	M := make([][]float64, t.nu)
	e := make([]float64, t.nu)
	col := make([]float64, t.nu)
	for i := range M {
		M[i] = make([]float64, t.nu)
	}
	for j := 0; j < t.nu; j++ {
		e[j] = 1
		if err := t.MultiplyByM(s, e, col); err != nil {
			return nil, err
		}
		e[j] = 0
		for i := range col {
			M[i][j] = col[i]
		}
	}
	return M, nil
}

// CalcInverseDynamics returns the mobility forces tau that, together with
// the applied forces, produce udot:
//
//	tau = M*udot + C(q,u) - mobForces - Jᵀ*bodyForces
//
// Requires Velocity.
func (t *Tree) CalcInverseDynamics(s *state.State, udot, mobForces []float64, bodyForces []spatial.SpatialVec, tau []float64) error {
	if err := t.checkForceLens(mobForces, bodyForces); err != nil {
		return err
	}
	if err := t.checkLen("udot", len(udot), t.nu); err != nil {
		return err
	}
	if err := t.checkLen("tau", len(tau), t.nu); err != nil {
		return err
	}
	pc := t.Position(s)
	dc := t.Dynamics(s)
	A := make([]spatial.SpatialVec, len(t.nodes))
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		A[i] = spatial.ShiftVelocity(pc.L[i], A[n.parent]).
			Add(mobilizer.MulJacobian(pc.H[i], n.nu, n.us(udot))).
			Add(dc.Coriolis[i])
	}
	F := make([]spatial.SpatialVec, len(t.nodes))
	for i := len(t.nodes) - 1; i >= 1; i-- {
		n := &t.nodes[i]
		F[i] = F[i].Add(pc.Mk[i].MulVec(A[i])).Add(dc.Gyroscopic[i])
		if bodyForces != nil {
			F[i] = F[i].Sub(bodyForces[i])
		}
		ti := n.us(tau)
		mobilizer.MulJacobianT(pc.H[i], n.nu, F[i], ti)
		if mobForces != nil {
			for j := range ti {
				ti[j] -= mobForces[n.uOff+j]
			}
		}
		if n.parent != GroundIndex {
			F[n.parent] = F[n.parent].Add(spatial.ShiftForce(pc.L[i], F[i]))
		}
	}
	return nil
}

// CalcBias returns C(q,u), the generalized forces needed to hold udot at
// zero with nothing applied.
func (t *Tree) CalcBias(s *state.State, c []float64) error {
	return t.CalcInverseDynamics(s, make([]float64, t.nu), nil, nil, c)
}

func (t *Tree) checkForceLens(mob []float64, body []spatial.SpatialVec) error {
	if mob != nil {
		if err := t.checkLen("mobility forces", len(mob), t.nu); err != nil {
			return err
		}
	}
	if body != nil {
		if err := t.checkLen("body forces", len(body), len(t.nodes)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) realizeAcceleration(s *state.State, f *Forces) error {
	e := t.mustLayout("realize Acceleration").acc.Entry(s)
	acc := e.Upd()
	var (
		mob  []float64
		body []spatial.SpatialVec
	)
	if f != nil {
		mob, body = f.Mobility, f.Body
	}
	if err := t.CalcAcceleration(s, mob, body, acc.UDot, acc.A_GB); err != nil {
		return err
	}
	q, u := t.q(s), t.u(s)
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		n.mob.QDotDot(n.qs(q), n.us(u), n.us(acc.UDot), n.qs(acc.QDotDot))
	}
	e.MarkValid(s.Ledger())
	return nil
}
