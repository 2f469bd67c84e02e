package spatial

import "math"

// Vec3 is a 3-vector in whatever frame the caller names it in.
type Vec3 [3]float64

var (
	XAxis = Vec3{1, 0, 0}
	YAxis = Vec3{0, 1, 0}
	ZAxis = Vec3{0, 0, 1}
)

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vec3) Neg() Vec3       { return Vec3{-a[0], -a[1], -a[2]} }

func (a Vec3) Scale(s float64) Vec3 { return Vec3{s * a[0], s * a[1], s * a[2]} }

func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Mul is the elementwise product, used for diagonal scalings.
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }

func (a Vec3) NormSqr() float64 { return a.Dot(a) }
func (a Vec3) Norm() float64    { return math.Sqrt(a.Dot(a)) }

// Normalize returns a unit vector along a, or the zero vector if a has no length.
func (a Vec3) Normalize() Vec3 {
	n := a.Norm()
	if n == 0 {
		return Vec3{}
	}
	return a.Scale(1 / n)
}

func (a Vec3) IsFinite() bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Mat33 is a row-major 3x3 matrix. Rotation matrices R_AB store the axes
// of frame B expressed in A as columns.
type Mat33 [3][3]float64

func Identity33() Mat33 {
	return Mat33{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag33 builds a diagonal matrix.
func Diag33(d Vec3) Mat33 {
	return Mat33{{d[0], 0, 0}, {0, d[1], 0}, {0, 0, d[2]}}
}

// CrossMat returns the matrix [v]x with [v]x*w == v.Cross(w).
func CrossMat(v Vec3) Mat33 {
	return Mat33{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

func (m Mat33) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// TMulVec computes transpose(m)*v without forming the transpose.
func (m Mat33) TMulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[1][0]*v[1] + m[2][0]*v[2],
		m[0][1]*v[0] + m[1][1]*v[1] + m[2][1]*v[2],
		m[0][2]*v[0] + m[1][2]*v[1] + m[2][2]*v[2],
	}
}

func (m Mat33) Mul(n Mat33) Mat33 {
	var r Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return r
}

func (m Mat33) T() Mat33 {
	return Mat33{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func (m Mat33) Add(n Mat33) Mat33 {
	var r Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + n[i][j]
		}
	}
	return r
}

func (m Mat33) Sub(n Mat33) Mat33 {
	var r Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] - n[i][j]
		}
	}
	return r
}

func (m Mat33) Scale(s float64) Mat33 {
	var r Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = s * m[i][j]
		}
	}
	return r
}

func (m Mat33) Col(j int) Vec3 { return Vec3{m[0][j], m[1][j], m[2][j]} }
func (m Mat33) Row(i int) Vec3 { return Vec3(m[i]) }

func (m Mat33) Trace() float64 { return m[0][0] + m[1][1] + m[2][2] }

func (m Mat33) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// IsSymmetric reports whether m equals its transpose within tol.
func (m Mat33) IsSymmetric(tol float64) bool {
	return math.Abs(m[0][1]-m[1][0]) <= tol &&
		math.Abs(m[0][2]-m[2][0]) <= tol &&
		math.Abs(m[1][2]-m[2][1]) <= tol
}

func (m Mat33) IsFinite() bool {
	for i := range m {
		if !Vec3(m[i]).IsFinite() {
			return false
		}
	}
	return true
}
