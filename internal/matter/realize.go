package matter

import (
	"github.com/san-kum/rigidtree/internal/mobilizer"
	"github.com/san-kum/rigidtree/internal/spatial"
	"github.com/san-kum/rigidtree/internal/stage"
	"github.com/san-kum/rigidtree/internal/state"
)

// RealizeStage computes the tree's contribution to st. The caller owns the
// ledger: it realizes stages in order and advances s after each call.
// forces is consulted only at Acceleration and may be nil.
func (t *Tree) RealizeStage(s *state.State, st stage.Stage, forces *Forces) error {
	switch st {
	case stage.Topology:
		return t.RealizeTopology(s)
	case stage.Position:
		t.realizePosition(s)
	case stage.Velocity:
		t.realizeVelocity(s)
	case stage.Dynamics:
		t.Dynamics(s)
		return t.Articulated(s).Err
	case stage.Acceleration:
		return t.realizeAcceleration(s, forces)
	}
	return nil
}

func (t *Tree) realizePosition(s *state.State) {
	e := t.mustLayout("realize Position").pos.Entry(s)
	pc := e.Upd()
	q := t.q(s)

	pc.X_GB[0] = spatial.IdentityTransform()
	pc.X_PB[0] = spatial.IdentityTransform()
	pc.X_FM[0] = spatial.IdentityTransform()
	pc.R_GF[0] = spatial.Identity33()
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		qi := n.qs(q)
		X_FM := n.mob.Transform(qi)
		X_PB := n.X_PF.Compose(X_FM).Compose(n.X_BM.Inverse())
		X_GP := pc.X_GB[n.parent]
		X_GB := X_GP.Compose(X_PB)

		pc.X_FM[i] = X_FM
		pc.X_PB[i] = X_PB
		pc.X_GB[i] = X_GB
		R_GF := X_GP.R.Mul(n.X_PF.R)
		pc.R_GF[i] = R_GF
		pc.L[i] = X_GB.P.Sub(X_GP.P)
		pc.P_MB[i] = X_GB.R.MulVec(n.X_BM.P).Neg()
		pc.COM[i] = X_GB.R.MulVec(n.mass.COM)
		pc.Mk[i] = n.mass.SpatialInertia(X_GB.R)

		Hf := n.mob.Jacobian(qi, X_FM)
		pc.HFM[i] = Hf
		var H mobilizer.Jacobian
		for j := 0; j < n.nu; j++ {
			w := R_GF.MulVec(Hf[j].Ang)
			H[j] = spatial.SpatialVec{Ang: w, Lin: R_GF.MulVec(Hf[j].Lin).Add(w.Cross(pc.P_MB[i]))}
		}
		pc.H[i] = H
	}
	e.MarkValid(s.Ledger())
}

func (t *Tree) realizeVelocity(s *state.State) {
	pc := t.Position(s)
	e := t.mustLayout("realize Velocity").vel.Entry(s)
	vc := e.Upd()
	q, u := t.q(s), t.u(s)

	vc.V_GB[0] = spatial.SpatialVec{}
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		ui := n.us(u)
		vc.V_FM[i] = mobilizer.MulJacobian(pc.HFM[i], n.nu, ui)
		vc.V_PB[i] = mobilizer.MulJacobian(pc.H[i], n.nu, ui)
		vc.V_GB[i] = spatial.ShiftVelocity(pc.L[i], vc.V_GB[n.parent]).Add(vc.V_PB[i])
		n.mob.QDot(n.qs(q), ui, n.qs(vc.QDot))
	}
	e.MarkValid(s.Ledger())
}

// calcDynamicsTerms evaluates the gyroscopic forces and coriolis
// accelerations base to tip.
func (t *Tree) calcDynamicsTerms(s *state.State, dc *DynamicsCache) {
	pc := t.Position(s)
	vc := t.Velocity(s)
	ac := t.Articulated(s)
	q, u := t.q(s), t.u(s)

	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		p := n.parent
		V := vc.V_GB[i]
		wGP := vc.V_GB[p].Ang
		wPB, vPB := vc.V_PB[i].Ang, vc.V_PB[i].Lin
		pMB := pc.P_MB[i]

		HDot := n.mob.JacobianDot(n.qs(q), n.us(u), pc.X_FM[i])
		VD := mobilizer.MulJacobian(HDot, n.nu, n.us(u))
		wd := pc.R_GF[i].MulVec(VD.Ang)
		vd := pc.R_GF[i].MulVec(VD.Lin)

		a := spatial.SpatialVec{
			Ang: wd.Add(wGP.Cross(wPB)),
			Lin: wGP.Cross(V.Lin.Sub(vc.V_GB[p].Lin)).
				Add(vd).
				Add(wd.Cross(pMB)).
				Add(wPB.Cross(wPB.Cross(pMB))).
				Add(wGP.Cross(vPB)),
		}
		b := n.mass.Gyroscopic(pc.X_GB[i].R, V.Ang)

		dc.Coriolis[i] = a
		dc.Gyroscopic[i] = b
		dc.TotalCoriolis[i] = spatial.ShiftVelocity(pc.L[i], dc.TotalCoriolis[p]).Add(a)
		dc.Centrifugal[i] = ac.P[i].MulVec(a).Add(b)
		dc.TotalCentrifugal[i] = pc.Mk[i].MulVec(dc.TotalCoriolis[i]).Add(b)
	}
}

// calcArticulated assembles articulated-body inertias tip to base.
func (t *Tree) calcArticulated(s *state.State, ac *ArticulatedCache) {
	pc := t.Position(s)
	ac.Err = nil
	for i := 1; i < len(t.nodes); i++ {
		ac.P[i] = pc.Mk[i]
	}
	for i := len(t.nodes) - 1; i >= 1; i-- {
		n := &t.nodes[i]
		P := ac.P[i]
		H := &pc.H[i]
		nu := n.nu

		var PH mobilizer.Jacobian
		D := spatial.SmallMat{N: nu}
		for j := 0; j < nu; j++ {
			PH[j] = P.MulVec(H[j])
		}
		for j := 0; j < nu; j++ {
			for k := 0; k < nu; k++ {
				D.A[j][k] = H[j].Dot(PH[k])
			}
		}
		DI, err := D.Invert()
		if err != nil && ac.Err == nil {
			ac.Err = singularAt(n, err)
		}
		var G mobilizer.Jacobian
		tauBar := spatial.SpatialIdentity()
		for k := 0; k < nu; k++ {
			for j := 0; j < nu; j++ {
				G[k] = G[k].Add(PH[j].Scale(DI.A[j][k]))
			}
			tauBar = tauBar.Sub(spatial.Outer(G[k], H[k]))
		}
		ac.D[i], ac.DI[i], ac.G[i] = D, DI, G
		ac.TauBar[i] = tauBar
		ac.PPlus[i] = tauBar.Mul(P)
		if n.parent != GroundIndex {
			ac.P[n.parent] = ac.P[n.parent].Add(spatial.ShiftInertia(pc.L[i], ac.PPlus[i]))
		}
	}
}
