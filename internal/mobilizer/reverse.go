package mobilizer

import "github.com/san-kum/rigidtree/internal/spatial"

// A reversed joint's frames are swapped: with X0 = X_F0M0 the forward
// transform, F = M0 and M = F0. For a forward column (w, v) expressed in
// F0 and R, p taken from X0, the reversed column expressed in F is
//
//	[-Rᵀw ; Rᵀ(-v + w x p)]
//
// Single-axis kinds reduce to plain negation.

func (m Mobilizer) reverseJacobian(X0 spatial.Transform, H Jacobian) Jacobian {
	n := m.NU()
	switch m.kind {
	case Translate, Slider, Pin, Screw, Cylinder:
		for j := 0; j < n; j++ {
			H[j] = H[j].Neg()
		}
		return H
	case Gimbal, Ball:
		for j := 0; j < n; j++ {
			H[j] = angular(X0.R.Row(j).Neg())
		}
		return H
	case Free:
		for j := range axes {
			H[j] = spatial.SpatialVec{
				Ang: X0.R.Row(j).Neg(),
				Lin: X0.R.TMulVec(axes[j].Cross(X0.P)),
			}
			H[j+3] = linear(X0.R.Row(j).Neg())
		}
		return H
	}
	var out Jacobian
	for j := 0; j < n; j++ {
		out[j] = spatial.SpatialVec{
			Ang: X0.R.TMulVec(H[j].Ang).Neg(),
			Lin: X0.R.TMulVec(H[j].Lin.Neg().Add(H[j].Ang.Cross(X0.P))),
		}
	}
	return out
}

// reverseJacobianDot differentiates the reversed columns in F. V0 is the
// forward velocity, so Rᵀ x changes at Rᵀ(xdot - w0 x x) and p at v0.
func (m Mobilizer) reverseJacobianDot(X0 spatial.Transform, V0 spatial.SpatialVec, H, HDot Jacobian) Jacobian {
	var out Jacobian
	n := m.NU()
	R, p := X0.R, X0.P
	w0, v0 := V0.Ang, V0.Lin
	switch m.kind {
	case Translate, Slider, Pin, Screw, Cylinder:
		return out
	case Gimbal, Ball:
		for j := 0; j < n; j++ {
			out[j] = angular(R.TMulVec(w0.Cross(axes[j])))
		}
		return out
	case Free:
		for j := range axes {
			ep := axes[j].Cross(p)
			out[j] = spatial.SpatialVec{
				Ang: R.TMulVec(w0.Cross(axes[j])),
				Lin: R.TMulVec(axes[j].Cross(v0).Sub(w0.Cross(ep))),
			}
			out[j+3] = linear(R.TMulVec(w0.Cross(axes[j])))
		}
		return out
	}
	for j := 0; j < n; j++ {
		w, v := H[j].Ang, H[j].Lin
		wd, vd := HDot[j].Ang, HDot[j].Lin
		x := v.Neg().Add(w.Cross(p))
		xd := vd.Neg().Add(wd.Cross(p)).Add(w.Cross(v0))
		out[j] = spatial.SpatialVec{
			Ang: R.TMulVec(wd.Sub(w0.Cross(w))).Neg(),
			Lin: R.TMulVec(xd.Sub(w0.Cross(x))),
		}
	}
	return out
}
