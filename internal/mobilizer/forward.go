package mobilizer

import "github.com/san-kum/rigidtree/internal/spatial"

var (
	xAxis = spatial.XAxis
	yAxis = spatial.YAxis
	zAxis = spatial.ZAxis
	axes  = [3]spatial.Vec3{spatial.XAxis, spatial.YAxis, spatial.ZAxis}

	// unitSpeeds[j] is the j-th unit speed vector. Custom code reads it
	// through HMul and HDotMul and must not write to it.
	unitSpeeds = [spatial.MaxDOF][spatial.MaxDOF]float64{
		{1}, {0, 1}, {0, 0, 1}, {0, 0, 0, 1}, {0, 0, 0, 0, 1}, {0, 0, 0, 0, 0, 1},
	}
)

func angular(w spatial.Vec3) spatial.SpatialVec { return spatial.SpatialVec{Ang: w} }
func linear(v spatial.Vec3) spatial.SpatialVec  { return spatial.SpatialVec{Lin: v} }

func (m Mobilizer) forwardTransform(q []float64) spatial.Transform {
	switch m.kind {
	case Ground, Weld:
		return spatial.IdentityTransform()
	case Translate:
		return spatial.Translation(vec3(q))
	case Slider:
		return spatial.Translation(xAxis.Scale(q[0]))
	case Pin:
		return spatial.NewTransform(spatial.RotZ(q[0]), spatial.Vec3{})
	case Screw:
		return spatial.NewTransform(spatial.RotZ(q[0]), zAxis.Scale(m.pitch*q[0]))
	case Cylinder:
		return spatial.NewTransform(spatial.RotZ(q[0]), zAxis.Scale(q[1]))
	case BendStretch:
		R := spatial.RotZ(q[0])
		return spatial.NewTransform(R, R.Col(0).Scale(q[1]))
	case Universal:
		return spatial.NewTransform(spatial.BodyXY(q[0], q[1]), spatial.Vec3{})
	case Planar:
		return spatial.NewTransform(spatial.RotZ(q[0]), spatial.Vec3{q[1], q[2], 0})
	case Gimbal:
		return spatial.NewTransform(spatial.BodyXYZ(vec3(q)), spatial.Vec3{})
	case Ball, LineOrientation:
		return spatial.NewTransform(m.rotation(q), spatial.Vec3{})
	case Ellipsoid:
		R := m.rotation(q)
		return spatial.NewTransform(R, m.semi.Mul(R.Col(2)))
	case Free, FreeLine:
		return spatial.NewTransform(m.rotation(q), vec3(q[m.rotQ():]))
	case Custom:
		return m.custom.Transform(m.normalizedCustomQ(q))
	}
	panic("mobilizer: unhandled kind " + m.kind.String())
}

// forwardJacobian returns the columns of H_F0M0 for the unreversed joint;
// X0 is the forward transform at q.
func (m Mobilizer) forwardJacobian(q []float64, X0 spatial.Transform) Jacobian {
	var H Jacobian
	R, p := X0.R, X0.P
	switch m.kind {
	case Ground, Weld:
	case Translate:
		for j := range axes {
			H[j] = linear(axes[j])
		}
	case Slider:
		H[0] = linear(xAxis)
	case Pin:
		H[0] = angular(zAxis)
	case Screw:
		H[0] = spatial.SpatialVec{Ang: zAxis, Lin: zAxis.Scale(m.pitch)}
	case Cylinder:
		H[0] = angular(zAxis)
		H[1] = linear(zAxis)
	case BendStretch:
		H[0] = spatial.SpatialVec{Ang: zAxis, Lin: zAxis.Cross(p)}
		H[1] = linear(R.Col(0))
	case Universal:
		H[0] = angular(xAxis)
		H[1] = angular(R.Col(1))
	case Planar:
		H[0] = angular(zAxis)
		H[1] = linear(xAxis)
		H[2] = linear(yAxis)
	case Gimbal, Ball:
		for j := range axes {
			H[j] = angular(axes[j])
		}
	case Ellipsoid:
		n := R.Col(2)
		for j := range axes {
			H[j] = spatial.SpatialVec{Ang: axes[j], Lin: m.semi.Mul(axes[j].Cross(n))}
		}
	case Free:
		for j := range axes {
			H[j] = angular(axes[j])
			H[j+3] = linear(axes[j])
		}
	case LineOrientation, FreeLine:
		H[0] = angular(R.Col(0))
		H[1] = angular(R.Col(1))
		if m.kind == FreeLine {
			for j := range axes {
				H[j+2] = linear(axes[j])
			}
		}
	case Custom:
		qn := m.normalizedCustomQ(q)
		for j, n := 0, m.NU(); j < n; j++ {
			H[j] = m.custom.HMul(qn, unitSpeeds[j][:n])
		}
	}
	return H
}

// forwardJacobianDot returns dH_F0M0/dt taken in F0. V0 is the forward
// cross-joint velocity H*u.
func (m Mobilizer) forwardJacobianDot(q, u []float64, X0 spatial.Transform, V0 spatial.SpatialVec) Jacobian {
	var D Jacobian
	R := X0.R
	w := V0.Ang
	switch m.kind {
	case BendStretch:
		D[0] = linear(zAxis.Cross(V0.Lin))
		D[1] = linear(w.Cross(R.Col(0)))
	case Universal:
		D[1] = angular(w.Cross(R.Col(1)))
	case Ellipsoid:
		wn := w.Cross(R.Col(2))
		for j := range axes {
			D[j] = linear(m.semi.Mul(axes[j].Cross(wn)))
		}
	case LineOrientation, FreeLine:
		D[0] = angular(w.Cross(R.Col(0)))
		D[1] = angular(w.Cross(R.Col(1)))
	case Custom:
		qn := m.normalizedCustomQ(q)
		for j, n := 0, m.NU(); j < n; j++ {
			D[j] = m.custom.HDotMul(qn, u, unitSpeeds[j][:n])
		}
	}
	return D
}

// normalizedCustomQ hands custom code a unit quaternion when its leading
// four coordinates are one.
func (m Mobilizer) normalizedCustomQ(q []float64) []float64 {
	if m.rotQ() != 4 {
		return q
	}
	n := spatial.Quaternion{q[0], q[1], q[2], q[3]}.Normalize()
	qn := append([]float64(nil), q...)
	copy(qn, n[:])
	return qn
}
