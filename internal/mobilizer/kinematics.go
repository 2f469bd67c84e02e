package mobilizer

import (
	"math"

	"github.com/san-kum/rigidtree/internal/spatial"
)

// QDot writes qdot = N(q)*u.
func (m Mobilizer) QDot(q, u, qdot []float64) {
	switch m.kind {
	case Ground, Weld:
	case Custom:
		m.custom.QDot(q, u, qdot)
	case Gimbal, Ball, Ellipsoid, Free:
		m.rotQDot(q, vec3(u), qdot)
		if m.kind == Free {
			copy(qdot[m.rotQ():m.rotQ()+3], u[3:6])
		}
	case LineOrientation, FreeLine:
		m.rotQDot(q, m.lineAngular(q, u), qdot)
		if m.kind == FreeLine {
			copy(qdot[m.rotQ():m.rotQ()+3], u[2:5])
		}
	default:
		copy(qdot[:m.NU()], u)
	}
}

// QDotDot writes qdotdot = N(q)*udot + NDot(q,u)*u.
func (m Mobilizer) QDotDot(q, u, udot, qdotdot []float64) {
	switch m.kind {
	case Ground, Weld:
	case Custom:
		m.custom.QDotDot(q, u, udot, qdotdot)
	case Gimbal, Ball, Ellipsoid, Free:
		m.rotQDotDot(q, vec3(u), vec3(udot), qdotdot)
		if m.kind == Free {
			copy(qdotdot[m.rotQ():m.rotQ()+3], udot[3:6])
		}
	case LineOrientation, FreeLine:
		m.rotQDotDot(q, m.lineAngular(q, u), m.lineAngular(q, udot), qdotdot)
		if m.kind == FreeLine {
			copy(qdotdot[m.rotQ():m.rotQ()+3], udot[2:5])
		}
	default:
		copy(qdotdot[:m.NU()], udot)
	}
}

// UFromQDot inverts QDot: u = NInv(q)*qdot. For quaternions the component
// of qdot along q is ignored.
func (m Mobilizer) UFromQDot(q, qdot, u []float64) {
	switch m.kind {
	case Ground, Weld:
	case Custom:
		m.custom.UFromQDot(q, qdot, u)
	case Gimbal, Ball, Ellipsoid, Free:
		w := m.rotW(q, qdot)
		copy(u[:3], w[:])
		if m.kind == Free {
			copy(u[3:6], qdot[m.rotQ():m.rotQ()+3])
		}
	case LineOrientation, FreeLine:
		wM := m.rotation(q).TMulVec(m.rotW(q, qdot))
		u[0], u[1] = wM[0], wM[1]
		if m.kind == FreeLine {
			copy(u[2:5], qdot[m.rotQ():m.rotQ()+3])
		}
	default:
		copy(u, qdot[:m.NU()])
	}
}

// lineAngular lifts the two body-frame speeds of a line orientation into
// an F-frame angular vector; the spin component is zero.
func (m Mobilizer) lineAngular(q, u []float64) spatial.Vec3 {
	return m.rotation(q).MulVec(spatial.Vec3{u[0], u[1], 0})
}

func (m Mobilizer) rotQDot(q []float64, w spatial.Vec3, qdot []float64) {
	if !m.euler {
		E := spatial.Quaternion{q[0], q[1], q[2], q[3]}.RateMatrix()
		for i := range E {
			qdot[i] = 0.5 * E[i].Dot(w)
		}
		return
	}
	wB := spatial.BodyXYZ(vec3(q)).TMulVec(w)
	d := eulerRates(vec3(q), wB)
	copy(qdot[:3], d[:])
}

func (m Mobilizer) rotQDotDot(q []float64, w, wdot spatial.Vec3, qdd []float64) {
	if !m.euler {
		e := spatial.Quaternion{q[0], q[1], q[2], q[3]}
		E := e.RateMatrix()
		var ed spatial.Quaternion
		for i := range E {
			ed[i] = 0.5 * E[i].Dot(w)
		}
		Ed := ed.RateMatrix()
		for i := range E {
			qdd[i] = 0.5 * (Ed[i].Dot(w) + E[i].Dot(wdot))
		}
		return
	}
	a := vec3(q)
	R := spatial.BodyXYZ(a)
	wB, wdB := R.TMulVec(w), R.TMulVec(wdot)
	d := eulerRates(a, wB)
	s1, c1 := math.Sincos(a[1])
	s2, c2 := math.Sincos(a[2])
	A := c2*wB[0] - s2*wB[1]
	Ad := c2*wdB[0] - s2*wdB[1] - d[2]*(s2*wB[0]+c2*wB[1])
	qdd[0] = Ad/c1 + A*s1*d[1]/(c1*c1)
	qdd[1] = s2*wdB[0] + c2*wdB[1] + d[2]*(c2*wB[0]-s2*wB[1])
	qdd[2] = wdB[2] - s1/c1*Ad - A*d[1]/(c1*c1)
}

// rotW recovers the F-frame angular velocity from orientation rates.
func (m Mobilizer) rotW(q, qdot []float64) spatial.Vec3 {
	if !m.euler {
		e := spatial.Quaternion{q[0], q[1], q[2], q[3]}
		E := e.RateMatrix()
		var w spatial.Vec3
		for i := range E {
			w = w.Add(E[i].Scale(qdot[i]))
		}
		n2 := e[0]*e[0] + e[1]*e[1] + e[2]*e[2] + e[3]*e[3]
		return w.Scale(2 / n2)
	}
	a := vec3(q)
	s1, c1 := math.Sincos(a[1])
	s2, c2 := math.Sincos(a[2])
	wB := spatial.Vec3{
		c1*c2*qdot[0] + s2*qdot[1],
		-c1*s2*qdot[0] + c2*qdot[1],
		s1*qdot[0] + qdot[2],
	}
	return spatial.BodyXYZ(a).MulVec(wB)
}

// eulerRates maps body-frame angular velocity to body-fixed XYZ angle
// rates. Singular at cos(a1) = 0.
func eulerRates(a, wB spatial.Vec3) spatial.Vec3 {
	s1, c1 := math.Sincos(a[1])
	s2, c2 := math.Sincos(a[2])
	A := c2*wB[0] - s2*wB[1]
	return spatial.Vec3{
		A / c1,
		s2*wB[0] + c2*wB[1],
		wB[2] - s1/c1*A,
	}
}

// QuaternionError returns |e| - 1 for a quaternion-mode mobilizer; ok is
// false when q holds no quaternion.
func (m Mobilizer) QuaternionError(q []float64) (qerr float64, ok bool) {
	if m.rotQ() != 4 {
		return 0, false
	}
	return spatial.Quaternion{q[0], q[1], q[2], q[3]}.Norm() - 1, true
}

// EnforceQuaternion normalizes the quaternion in q and, when qErr is not
// nil, removes its component along the normalized quaternion. It reports
// whether anything was done.
func (m Mobilizer) EnforceQuaternion(q, qErr []float64) bool {
	if m.rotQ() != 4 {
		return false
	}
	e := spatial.Quaternion{q[0], q[1], q[2], q[3]}.Normalize()
	copy(q[:4], e[:])
	if qErr != nil {
		d := e[0]*qErr[0] + e[1]*qErr[1] + e[2]*qErr[2] + e[3]*qErr[3]
		for i := range e {
			qErr[i] -= d * e[i]
		}
	}
	return true
}
