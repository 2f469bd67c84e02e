// Package mobilizer implements the joint catalog: for each kind, the
// transform X_FM(q) of the outboard frame M in the inboard frame F, the
// velocity Jacobian H_FM with V_FM = H_FM*u, its time derivative, the
// kinematic map qdot = N(q)*u, and best-fit inverses.
//
// A Mobilizer is a small value dispatched on its Kind. Coordinates and
// speeds are not stored here; callers pass the q and u slices that belong
// to the mobilizer.
//
// # Reversed joints
//
// A reversed mobilizer swaps the roles of F and M: X_FM is the inverse of
// the forward transform of the same q, and H_FM and its derivative are
// the mirrored forms of the forward Jacobian.
package mobilizer

import (
	"fmt"
	"math"

	"github.com/san-kum/rigidtree/internal/spatial"
)

// Jacobian holds up to MaxDOF spatial columns; only the first NU are used.
type Jacobian = [spatial.MaxDOF]spatial.SpatialVec

type Mobilizer struct {
	kind     Kind
	reversed bool
	euler    bool
	pitch    float64
	semi     spatial.Vec3
	custom   CustomImpl
}

type Option func(*Mobilizer)

// Reversed makes the child act as the kinematic parent of the joint.
func Reversed() Option { return func(m *Mobilizer) { m.reversed = true } }

// UseEulerAngles selects body-fixed XYZ angles instead of a quaternion
// for kinds that support both.
func UseEulerAngles() Option { return func(m *Mobilizer) { m.euler = true } }

// WithPitch sets a screw's translation per radian.
func WithPitch(p float64) Option { return func(m *Mobilizer) { m.pitch = p } }

// WithSemiAxes sets an ellipsoid joint's semi-axis lengths.
func WithSemiAxes(a spatial.Vec3) Option { return func(m *Mobilizer) { m.semi = a } }

// New builds a catalog mobilizer.
func New(kind Kind, opts ...Option) (Mobilizer, error) {
	if kind < Ground || kind > Custom {
		return Mobilizer{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if kind == Custom {
		return Mobilizer{}, ErrCustomRequired
	}
	m := Mobilizer{kind: kind, semi: spatial.Vec3{1, 1, 1}}
	for _, o := range opts {
		o(&m)
	}
	if kind == Gimbal {
		m.euler = true
	}
	if m.euler && !kind.hasOrientation() && kind != Gimbal {
		m.euler = false
	}
	if math.IsNaN(m.pitch) || math.IsInf(m.pitch, 0) {
		return Mobilizer{}, fmt.Errorf("%w: screw pitch %g", ErrBadParameter, m.pitch)
	}
	if kind == Ellipsoid {
		for _, a := range m.semi {
			if !(a > 0) || math.IsInf(a, 0) {
				return Mobilizer{}, fmt.Errorf("%w: ellipsoid semi-axes %v", ErrBadParameter, m.semi)
			}
		}
	}
	return m, nil
}

// MustNew is New for fixed, known-good arguments.
func MustNew(kind Kind, opts ...Option) Mobilizer {
	m, err := New(kind, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// NewCustom wraps a user implementation with 1 to 6 speeds.
func NewCustom(impl CustomImpl, opts ...Option) (Mobilizer, error) {
	if impl == nil {
		return Mobilizer{}, ErrCustomRequired
	}
	nu, nq, na := impl.NU(), impl.NQ(), impl.NAngles()
	if nu < 1 || nu > spatial.MaxDOF {
		return Mobilizer{}, fmt.Errorf("%w: custom nu %d not in 1..6", ErrBadParameter, nu)
	}
	if nq < nu || nq > 7 {
		return Mobilizer{}, fmt.Errorf("%w: custom nq %d", ErrBadParameter, nq)
	}
	if na < 0 || na > 4 || na > nq {
		return Mobilizer{}, fmt.Errorf("%w: custom nAngles %d", ErrBadParameter, na)
	}
	m := Mobilizer{kind: Custom, custom: impl}
	for _, o := range opts {
		o(&m)
	}
	m.euler = false
	return m, nil
}

func (m Mobilizer) Kind() Kind             { return m.kind }
func (m Mobilizer) IsReversed() bool       { return m.reversed }
func (m Mobilizer) UsesEulerAngles() bool  { return m.euler }
func (m Mobilizer) Pitch() float64         { return m.pitch }
func (m Mobilizer) SemiAxes() spatial.Vec3 { return m.semi }
func (m Mobilizer) CustomImpl() CustomImpl { return m.custom }
func (m Mobilizer) String() string         { return m.describe() }
func (m Mobilizer) IsImmobile() bool       { return m.NU() == 0 }
func (m Mobilizer) HasEulerForm() bool     { return m.kind.hasOrientation() }
func (m Mobilizer) UsesQuaternion() bool   { return m.rotQ() == 4 }
func (m Mobilizer) NumQuaternions() int    { return boolInt(m.UsesQuaternion()) }

// QDotIsU reports whether qdot == u identically, so that a force on q
// is the same generalized force on u.
func (m Mobilizer) QDotIsU() bool {
	switch m.kind {
	case Custom, Gimbal, Ball, Ellipsoid, Free, LineOrientation, FreeLine:
		return false
	}
	return true
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (m Mobilizer) describe() string {
	s := m.kind.String()
	if m.euler && m.kind != Gimbal {
		s += "(euler)"
	}
	if m.reversed {
		s += "(reversed)"
	}
	return s
}

// WithEulerAngles returns a copy of m in the other rotation mode.
func (m Mobilizer) WithEulerAngles(euler bool) Mobilizer {
	if m.kind.hasOrientation() {
		m.euler = euler
	}
	return m
}

// rotQ is the number of q entries holding orientation (4 or 3) for kinds
// with quaternion/Euler duality, and for Custom the number of angles.
func (m Mobilizer) rotQ() int {
	switch {
	case m.kind.hasOrientation():
		if m.euler {
			return 3
		}
		return 4
	case m.kind == Custom:
		if m.custom.NAngles() == 4 {
			return 4
		}
	}
	return 0
}

// NU is the number of generalized speeds.
func (m Mobilizer) NU() int {
	if m.kind == Custom {
		return m.custom.NU()
	}
	return dofs[m.kind]
}

// NQ is the number of generalized coordinates.
func (m Mobilizer) NQ() int {
	switch m.kind {
	case Custom:
		return m.custom.NQ()
	case Ball, Ellipsoid, LineOrientation:
		return m.rotQ()
	case Free, FreeLine:
		return m.rotQ() + 3
	}
	return dofs[m.kind]
}

// DefaultQ writes the reference configuration: zero, with identity
// quaternions where present.
func (m Mobilizer) DefaultQ(q []float64) {
	for i := range q {
		q[i] = 0
	}
	if m.rotQ() == 4 {
		q[0] = 1
	}
}

// Transform returns X_FM(q).
func (m Mobilizer) Transform(q []float64) spatial.Transform {
	X := m.forwardTransform(q)
	if m.reversed {
		return X.Inverse()
	}
	return X
}

// Jacobian returns H_FM, the columns of the cross-joint spatial velocity
// in F, given X_FM already computed from q.
func (m Mobilizer) Jacobian(q []float64, X_FM spatial.Transform) Jacobian {
	X0 := X_FM
	if m.reversed {
		X0 = X_FM.Inverse()
	}
	H := m.forwardJacobian(q, X0)
	if m.reversed {
		return m.reverseJacobian(X0, H)
	}
	return H
}

// JacobianDot returns the time derivative of H_FM taken in F.
func (m Mobilizer) JacobianDot(q, u []float64, X_FM spatial.Transform) Jacobian {
	X0 := X_FM
	if m.reversed {
		X0 = X_FM.Inverse()
	}
	H := m.forwardJacobian(q, X0)
	V0 := MulJacobian(H, m.NU(), u)
	HDot := m.forwardJacobianDot(q, u, X0, V0)
	if m.reversed {
		return m.reverseJacobianDot(X0, V0, H, HDot)
	}
	return HDot
}

// Velocity returns V_FM = H_FM*u.
func (m Mobilizer) Velocity(q, u []float64, X_FM spatial.Transform) spatial.SpatialVec {
	return MulJacobian(m.Jacobian(q, X_FM), m.NU(), u)
}

// MulJacobian forms sum_j u_j*H_j over the first n columns.
func MulJacobian(H Jacobian, n int, u []float64) spatial.SpatialVec {
	var v spatial.SpatialVec
	for j := 0; j < n; j++ {
		v = v.Add(H[j].Scale(u[j]))
	}
	return v
}

// MulJacobianT forms the generalized forces Hᵀ*F.
func MulJacobianT(H Jacobian, n int, F spatial.SpatialVec, out []float64) {
	for j := 0; j < n; j++ {
		out[j] = H[j].Dot(F)
	}
}

// rotation reads the orientation coordinates of a dual-form kind.
func (m Mobilizer) rotation(q []float64) spatial.Mat33 {
	if m.euler {
		return spatial.BodyXYZ(spatial.Vec3{q[0], q[1], q[2]})
	}
	return spatial.Quaternion{q[0], q[1], q[2], q[3]}.Rotation()
}

func (m Mobilizer) setRotation(R spatial.Mat33, q []float64) {
	if m.euler {
		a := spatial.BodyXYZAngles(R)
		copy(q, a[:])
		return
	}
	e := spatial.QuaternionFromRotation(R)
	copy(q, e[:])
}

func vec3(q []float64) spatial.Vec3 { return spatial.Vec3{q[0], q[1], q[2]} }
