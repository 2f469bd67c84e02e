package spatial

// SpatialVec pairs a rotational and a translational 3-vector: angular and
// linear velocity, angular and linear acceleration, or moment and force.
type SpatialVec struct {
	Ang Vec3
	Lin Vec3
}

func (a SpatialVec) Add(b SpatialVec) SpatialVec {
	return SpatialVec{a.Ang.Add(b.Ang), a.Lin.Add(b.Lin)}
}

func (a SpatialVec) Sub(b SpatialVec) SpatialVec {
	return SpatialVec{a.Ang.Sub(b.Ang), a.Lin.Sub(b.Lin)}
}

func (a SpatialVec) Scale(s float64) SpatialVec {
	return SpatialVec{a.Ang.Scale(s), a.Lin.Scale(s)}
}

func (a SpatialVec) Neg() SpatialVec { return SpatialVec{a.Ang.Neg(), a.Lin.Neg()} }

// Dot is the 6-vector inner product, e.g. power of a force on a velocity.
func (a SpatialVec) Dot(b SpatialVec) float64 {
	return a.Ang.Dot(b.Ang) + a.Lin.Dot(b.Lin)
}

func (a SpatialVec) IsFinite() bool { return a.Ang.IsFinite() && a.Lin.IsFinite() }

// At indexes the six components, angular first.
func (a SpatialVec) At(i int) float64 {
	if i < 3 {
		return a.Ang[i]
	}
	return a.Lin[i-3]
}

// Rotate re-expresses both halves through R.
func (a SpatialVec) Rotate(R Mat33) SpatialVec {
	return SpatialVec{R.MulVec(a.Ang), R.MulVec(a.Lin)}
}

// ShiftForce moves a spatial force applied at point Q to the point P, where
// l is the vector from P to Q: Phi*F = [m + l x f ; f].
func ShiftForce(l Vec3, F SpatialVec) SpatialVec {
	return SpatialVec{F.Ang.Add(l.Cross(F.Lin)), F.Lin}
}

// ShiftVelocity moves a rigid-body spatial velocity (or acceleration
// without the centripetal term) from P out to Q: ~Phi*V = [w ; v + w x l].
func ShiftVelocity(l Vec3, V SpatialVec) SpatialVec {
	return SpatialVec{V.Ang, V.Lin.Add(V.Ang.Cross(l))}
}

// SpatialMat is a 6x6 matrix held as 3x3 blocks, indexed [row][col] with
// block 0 the rotational half.
type SpatialMat [2][2]Mat33

func (m SpatialMat) MulVec(v SpatialVec) SpatialVec {
	return SpatialVec{
		m[0][0].MulVec(v.Ang).Add(m[0][1].MulVec(v.Lin)),
		m[1][0].MulVec(v.Ang).Add(m[1][1].MulVec(v.Lin)),
	}
}

func (m SpatialMat) Mul(n SpatialMat) SpatialMat {
	var r SpatialMat
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][0].Mul(n[0][j]).Add(m[i][1].Mul(n[1][j]))
		}
	}
	return r
}

func (m SpatialMat) T() SpatialMat {
	return SpatialMat{
		{m[0][0].T(), m[1][0].T()},
		{m[0][1].T(), m[1][1].T()},
	}
}

func (m SpatialMat) Add(n SpatialMat) SpatialMat {
	var r SpatialMat
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][j].Add(n[i][j])
		}
	}
	return r
}

func (m SpatialMat) Sub(n SpatialMat) SpatialMat {
	var r SpatialMat
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][j].Sub(n[i][j])
		}
	}
	return r
}

// At indexes the 6x6 matrix elementwise.
func (m SpatialMat) At(i, j int) float64 {
	return m[i/3][j/3][i%3][j%3]
}

func SpatialIdentity() SpatialMat {
	return SpatialMat{{Identity33(), {}}, {{}, Identity33()}}
}

// Outer returns a*bᵀ.
func Outer(a, b SpatialVec) SpatialMat {
	var r SpatialMat
	for i := 0; i < 6; i++ {
		ai := a.At(i)
		for j := 0; j < 6; j++ {
			r[i/3][j/3][i%3][j%3] = ai * b.At(j)
		}
	}
	return r
}

// ShiftInertia computes Phi*P*~Phi for the shift vector l, moving an
// articulated inertia from a child body's origin onto its parent's.
func ShiftInertia(l Vec3, P SpatialMat) SpatialMat {
	L := CrossMat(l)
	// Phi = [1 L; 0 1], ~Phi = [1 0; -L 1]
	a := P[0][0].Add(L.Mul(P[1][0]))
	b := P[0][1].Add(L.Mul(P[1][1]))
	c := P[1][0]
	d := P[1][1]
	return SpatialMat{
		{a.Sub(b.Mul(L)), b},
		{c.Sub(d.Mul(L)), d},
	}
}
