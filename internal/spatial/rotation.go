package spatial

import "math"

// Angles closer than this to the body-XYZ middle-angle singularity are
// treated as singular when extracting Euler angles.
const eulerSingularTol = 1e-12

func RotX(a float64) Mat33 {
	s, c := math.Sincos(a)
	return Mat33{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func RotY(a float64) Mat33 {
	s, c := math.Sincos(a)
	return Mat33{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func RotZ(a float64) Mat33 {
	s, c := math.Sincos(a)
	return Mat33{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// RotAxis is the rotation by angle about a unit axis (Rodrigues).
func RotAxis(axis Vec3, angle float64) Mat33 {
	k := axis.Normalize()
	K := CrossMat(k)
	s, c := math.Sincos(angle)
	return Identity33().Add(K.Scale(s)).Add(K.Mul(K).Scale(1 - c))
}

// BodyXYZ builds R = Rx(a)*Ry(b)*Rz(c), a body-fixed 1-2-3 sequence.
func BodyXYZ(a Vec3) Mat33 {
	return RotX(a[0]).Mul(RotY(a[1])).Mul(RotZ(a[2]))
}

// BodyXYZAngles inverts BodyXYZ. The middle angle is in [-pi/2, pi/2]; at
// the singularity the third angle is set to zero.
func BodyXYZAngles(R Mat33) Vec3 {
	cb := math.Hypot(R[0][0], R[0][1])
	b := math.Atan2(R[0][2], cb)
	if cb < eulerSingularTol {
		return Vec3{math.Atan2(R[2][1], R[1][1]), b, 0}
	}
	return Vec3{
		math.Atan2(-R[1][2], R[2][2]),
		b,
		math.Atan2(-R[0][1], R[0][0]),
	}
}

// BodyXY builds R = Rx(a)*Ry(b).
func BodyXY(a, b float64) Mat33 {
	return RotX(a).Mul(RotY(b))
}

// BodyXYAngles returns the best-fit body-fixed X then Y angles for R,
// discarding any rotation about the resulting z axis.
func BodyXYAngles(R Mat33) (a, b float64) {
	return math.Atan2(R[2][1], R[1][1]), math.Atan2(R[0][2], R[0][0])
}

// SpaceXY rotates first about the fixed X axis by a, then about the fixed
// Y axis by b: R = Ry(b)*Rx(a).
func SpaceXY(a, b float64) Mat33 {
	return RotY(b).Mul(RotX(a))
}

// Quaternion is a scalar-first rotation quaternion (e0, e1, e2, e3). It
// need not be normalized; conversions normalize on the way in.
type Quaternion [4]float64

func IdentityQuaternion() Quaternion { return Quaternion{1, 0, 0, 0} }

func (q Quaternion) Norm() float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 {
		return IdentityQuaternion()
	}
	return Quaternion{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Rotation converts q (normalized first) to a rotation matrix.
func (q Quaternion) Rotation() Mat33 {
	u := q.Normalize()
	w, x, y, z := u[0], u[1], u[2], u[3]
	return Mat33{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// QuaternionFromRotation extracts a unit quaternion with non-negative
// scalar part from a rotation matrix.
func QuaternionFromRotation(R Mat33) Quaternion {
	var q Quaternion
	tr := R.Trace()
	switch {
	case tr >= R[0][0] && tr >= R[1][1] && tr >= R[2][2]:
		s := 2 * math.Sqrt(1+tr)
		q = Quaternion{s / 4, (R[2][1] - R[1][2]) / s, (R[0][2] - R[2][0]) / s, (R[1][0] - R[0][1]) / s}
	case R[0][0] >= R[1][1] && R[0][0] >= R[2][2]:
		s := 2 * math.Sqrt(1+R[0][0]-R[1][1]-R[2][2])
		q = Quaternion{(R[2][1] - R[1][2]) / s, s / 4, (R[0][1] + R[1][0]) / s, (R[0][2] + R[2][0]) / s}
	case R[1][1] >= R[2][2]:
		s := 2 * math.Sqrt(1+R[1][1]-R[0][0]-R[2][2])
		q = Quaternion{(R[0][2] - R[2][0]) / s, (R[0][1] + R[1][0]) / s, s / 4, (R[1][2] + R[2][1]) / s}
	default:
		s := 2 * math.Sqrt(1+R[2][2]-R[0][0]-R[1][1])
		q = Quaternion{(R[1][0] - R[0][1]) / s, (R[0][2] + R[2][0]) / s, (R[1][2] + R[2][1]) / s, s / 4}
	}
	if q[0] < 0 {
		q = Quaternion{-q[0], -q[1], -q[2], -q[3]}
	}
	return q.Normalize()
}

// RateMatrix returns E(q), the 4x3 matrix with qdot = 0.5*E(q)*w where w
// is the angular velocity expressed in the fixed frame.
func (q Quaternion) RateMatrix() [4]Vec3 {
	return [4]Vec3{
		{-q[1], -q[2], -q[3]},
		{q[0], q[3], -q[2]},
		{-q[3], q[0], q[1]},
		{q[2], -q[1], q[0]},
	}
}

// RotationDistance is the rotation angle of R1ᵀR2. The sine comes from the
// skew part so small angles keep full precision.
func RotationDistance(R1, R2 Mat33) float64 {
	R := R1.T().Mul(R2)
	v := Vec3{R[2][1] - R[1][2], R[0][2] - R[2][0], R[1][0] - R[0][1]}
	return math.Atan2(v.Norm()/2, (R.Trace()-1)/2)
}
