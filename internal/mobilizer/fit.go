package mobilizer

import (
	"math"

	"github.com/san-kum/rigidtree/internal/spatial"
)

// The fits set q or u so the joint best reproduces a requested relative
// transform or velocity. Components a kind cannot represent are dropped;
// coordinates the fit does not touch keep their values.

const fitTiny = 4 * 2.220446049250313e-16

// SetQToFitRotation fits q to the requested R_FM.
func (m Mobilizer) SetQToFitRotation(R_FM spatial.Mat33, q []float64) {
	R0 := R_FM
	if m.reversed {
		R0 = R_FM.T()
	}
	switch m.kind {
	case Pin, Screw, Cylinder, BendStretch, Planar:
		q[0] = spatial.BodyXYZAngles(R0)[2]
	case Universal:
		q[0], q[1] = spatial.BodyXYAngles(R0)
	case Gimbal:
		a := spatial.BodyXYZAngles(R0)
		copy(q[:3], a[:])
	case Ball, Ellipsoid, Free, LineOrientation, FreeLine:
		m.setRotation(R0, q)
	case Custom:
		X := m.forwardTransform(q)
		m.custom.FitTransform(spatial.NewTransform(R0, X.P), q)
	}
}

// SetQToFitTranslation fits q to the requested p_FM. Reversed joints use
// the rotation currently held in q.
func (m Mobilizer) SetQToFitTranslation(p_FM spatial.Vec3, q []float64) {
	p := p_FM
	if m.reversed {
		p = m.forwardTransform(q).R.MulVec(p_FM).Neg()
	}
	switch m.kind {
	case Translate:
		copy(q[:3], p[:])
	case Slider:
		q[0] = p[0]
	case Screw:
		if m.pitch != 0 {
			q[0] = p[2] / m.pitch
		}
	case Cylinder:
		q[1] = p[2]
	case BendStretch:
		if d := math.Hypot(p[0], p[1]); d >= fitTiny {
			q[0] = math.Atan2(p[1], p[0])
			q[1] = d
		} else {
			q[1] = 0
		}
	case Planar:
		q[1], q[2] = p[0], p[1]
	case Ellipsoid:
		e := spatial.Vec3{p[0] / m.semi[0], p[1] / m.semi[1], p[2] / m.semi[2]}
		if e.NormSqr() == 0 {
			return
		}
		R := m.rotation(q)
		m.setRotation(rotationBetween(R.Col(2), e.Normalize()).Mul(R), q)
	case Free, FreeLine:
		copy(q[m.rotQ():m.rotQ()+3], p[:])
	case Custom:
		X := m.forwardTransform(q)
		m.custom.FitTransform(spatial.NewTransform(X.R, p), q)
	}
}

// SetQToFitTransform fits rotation first, then translation.
func (m Mobilizer) SetQToFitTransform(X_FM spatial.Transform, q []float64) {
	if m.kind == Custom {
		X0 := X_FM
		if m.reversed {
			X0 = X_FM.Inverse()
		}
		m.custom.FitTransform(X0, q)
		return
	}
	m.SetQToFitRotation(X_FM.R, q)
	m.SetQToFitTranslation(X_FM.P, q)
}

// SetUToFitAngularVelocity fits u to the requested w_FM, expressed in F.
func (m Mobilizer) SetUToFitAngularVelocity(q []float64, w_FM spatial.Vec3, u []float64) {
	w := w_FM
	if m.reversed {
		w = m.forwardTransform(q).R.MulVec(w_FM).Neg()
	}
	switch m.kind {
	case Pin, Screw, Cylinder, BendStretch, Planar:
		u[0] = w[2]
	case Universal:
		u[0] = w[0]
		u[1] = spatial.RotX(q[0]).Col(1).Dot(w)
	case Gimbal, Ball, Ellipsoid, Free:
		copy(u[:3], w[:])
	case LineOrientation, FreeLine:
		wM := m.rotation(q).TMulVec(w)
		u[0], u[1] = wM[0], wM[1]
	case Custom:
		X := m.forwardTransform(q)
		V := m.forwardVelocity(q, u, X)
		m.custom.FitVelocity(m.normalizedCustomQ(q), spatial.SpatialVec{Ang: w, Lin: V.Lin}, u)
	}
}

// SetUToFitLinearVelocity fits u to the requested v_FM, expressed in F,
// keeping the angular velocity currently implied by u.
func (m Mobilizer) SetUToFitLinearVelocity(q []float64, v_FM spatial.Vec3, u []float64) {
	X0 := m.forwardTransform(q)
	v := v_FM
	if m.reversed {
		X := X0.Inverse()
		wcur := m.Velocity(q, u, X).Ang
		v = X0.R.MulVec(v_FM.Neg().Add(wcur.Cross(X.P)))
	}
	switch m.kind {
	case Translate:
		copy(u[:3], v[:])
	case Slider:
		u[0] = v[0]
	case Screw:
		if m.pitch != 0 {
			u[0] = v[2] / m.pitch
		}
	case Cylinder:
		u[1] = v[2]
	case BendStretch:
		vM := X0.R.TMulVec(v)
		u[1] = vM[0]
		if math.Abs(q[1]) > fitTiny {
			u[0] = vM[1] / q[1]
		}
	case Planar:
		u[1], u[2] = v[0], v[1]
	case Ellipsoid:
		// Treat the surface as the sphere through the current point.
		r := X0.P.Norm()
		if r < fitTiny {
			return
		}
		vM := X0.R.TMulVec(v)
		wM := X0.R.TMulVec(vec3(u))
		wM[0], wM[1] = -vM[1]/r, vM[0]/r
		w := X0.R.MulVec(wM)
		copy(u[:3], w[:])
	case Free:
		copy(u[3:6], v[:])
	case FreeLine:
		copy(u[2:5], v[:])
	case Custom:
		V := m.forwardVelocity(q, u, X0)
		m.custom.FitVelocity(m.normalizedCustomQ(q), spatial.SpatialVec{Ang: V.Ang, Lin: v}, u)
	}
}

// SetUToFitVelocity fits angular velocity first, then linear.
func (m Mobilizer) SetUToFitVelocity(q []float64, V_FM spatial.SpatialVec, u []float64) {
	if m.kind == Custom && !m.reversed {
		m.custom.FitVelocity(m.normalizedCustomQ(q), V_FM, u)
		return
	}
	m.SetUToFitAngularVelocity(q, V_FM.Ang, u)
	m.SetUToFitLinearVelocity(q, V_FM.Lin, u)
}

func (m Mobilizer) forwardVelocity(q, u []float64, X0 spatial.Transform) spatial.SpatialVec {
	return MulJacobian(m.forwardJacobian(q, X0), m.NU(), u)
}
