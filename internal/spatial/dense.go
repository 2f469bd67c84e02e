package spatial

import (
	"errors"
	"math"
)

// MaxDOF is the largest number of generalized speeds a single mobilizer
// can have.
const MaxDOF = 6

var ErrSingular = errors.New("spatial: singular matrix")

// SmallMat is a square matrix of dimension N <= MaxDOF, stored inline so
// per-node articulated-body quantities need no allocation.
type SmallMat struct {
	N int
	A [MaxDOF][MaxDOF]float64
}

// Invert returns the inverse of m by Gauss-Jordan elimination with partial
// pivoting.
func (m SmallMat) Invert() (SmallMat, error) {
	n := m.N
	a := m.A
	inv := SmallMat{N: n}
	for i := 0; i < n; i++ {
		inv.A[i][i] = 1
	}
	scale := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			scale = math.Max(scale, math.Abs(a[i][j]))
		}
	}
	for col := 0; col < n; col++ {
		piv := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[piv][col]) {
				piv = r
			}
		}
		if math.Abs(a[piv][col]) <= 1e-14*scale || a[piv][col] == 0 {
			return SmallMat{}, ErrSingular
		}
		a[col], a[piv] = a[piv], a[col]
		inv.A[col], inv.A[piv] = inv.A[piv], inv.A[col]
		d := 1 / a[col][col]
		for j := 0; j < n; j++ {
			a[col][j] *= d
			inv.A[col][j] *= d
		}
		for r := 0; r < n; r++ {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for j := 0; j < n; j++ {
				a[r][j] -= f * a[col][j]
				inv.A[r][j] -= f * inv.A[col][j]
			}
		}
	}
	return inv, nil
}

// MulVec multiplies by the first N entries of v.
func (m SmallMat) MulVec(v []float64) [MaxDOF]float64 {
	var r [MaxDOF]float64
	for i := 0; i < m.N; i++ {
		s := 0.0
		for j := 0; j < m.N; j++ {
			s += m.A[i][j] * v[j]
		}
		r[i] = s
	}
	return r
}

// SolveDense solves A x = b for a general square system held row-major in
// a, overwriting neither input. Used for small full mass matrices.
func SolveDense(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}
	for col := 0; col < n; col++ {
		piv := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[piv][col]) {
				piv = r
			}
		}
		if m[piv][col] == 0 {
			return nil, ErrSingular
		}
		m[col], m[piv] = m[piv], m[col]
		for r := col + 1; r < n; r++ {
			f := m[r][col] / m[col][col]
			for j := col; j <= n; j++ {
				m[r][j] -= f * m[col][j]
			}
		}
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		s := m[i][n]
		for j := i + 1; j < n; j++ {
			s -= m[i][j] * x[j]
		}
		x[i] = s / m[i][i]
	}
	return x, nil
}
