package spatial

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNegativeMass   = errors.New("spatial: mass must be finite and non-negative")
	ErrBadInertia     = errors.New("spatial: inertia must be finite, symmetric and positive semidefinite")
	ErrNonFiniteValue = errors.New("spatial: non-finite value")
)

// MassProperties of a body: mass, mass center in the body frame, and the
// inertia tensor about the body origin expressed in the body frame.
type MassProperties struct {
	Mass    float64
	COM     Vec3
	Inertia Mat33
}

// NewMassProperties validates and builds mass properties.
func NewMassProperties(mass float64, com Vec3, inertia Mat33) (MassProperties, error) {
	mp := MassProperties{Mass: mass, COM: com, Inertia: inertia}
	if err := mp.Validate(); err != nil {
		return MassProperties{}, err
	}
	return mp, nil
}

// PointMass is a particle of mass m at com; its inertia about the body
// origin comes entirely from the offset.
func PointMass(m float64, com Vec3) MassProperties {
	return MassProperties{Mass: m, COM: com, Inertia: SteinerShift(m, com)}
}

// SolidBox returns the properties of a uniform box centered at com with
// the given half-dimensions, inertia taken about the body origin.
func SolidBox(m float64, half Vec3, com Vec3) MassProperties {
	x2, y2, z2 := half[0]*half[0], half[1]*half[1], half[2]*half[2]
	Ic := Diag33(Vec3{y2 + z2, x2 + z2, x2 + y2}.Scale(m / 3))
	return MassProperties{Mass: m, COM: com, Inertia: Ic.Add(SteinerShift(m, com))}
}

// SteinerShift is the parallel-axis term m(|c|²1 - c cᵀ).
func SteinerShift(m float64, c Vec3) Mat33 {
	cc := c.NormSqr()
	return Identity33().Scale(m * cc).Sub(outer3(c, c).Scale(m))
}

func outer3(a, b Vec3) Mat33 {
	var r Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a[i] * b[j]
		}
	}
	return r
}

func (mp MassProperties) Validate() error {
	if math.IsNaN(mp.Mass) || math.IsInf(mp.Mass, 0) || mp.Mass < 0 {
		return fmt.Errorf("%w: got %g", ErrNegativeMass, mp.Mass)
	}
	if !mp.COM.IsFinite() {
		return fmt.Errorf("%w: mass center", ErrNonFiniteValue)
	}
	I := mp.Inertia
	if !I.IsFinite() || !I.IsSymmetric(1e-9*(1+I.Trace())) {
		return ErrBadInertia
	}
	// Sylvester's criterion on the leading minors, with slack for rounding.
	tol := -1e-12 * (1 + I.Trace())
	m1 := I[0][0]
	m2 := I[0][0]*I[1][1] - I[0][1]*I[1][0]
	if m1 < tol || I[1][1] < tol || I[2][2] < tol || m2 < tol*(1+m1) || I.Det() < tol*(1+m2) {
		return ErrBadInertia
	}
	return nil
}

// InertiaAboutCOM removes the parallel-axis term.
func (mp MassProperties) InertiaAboutCOM() Mat33 {
	return mp.Inertia.Sub(SteinerShift(mp.Mass, mp.COM))
}

// SpatialInertia returns Mk for a body whose frame is oriented by R_GB,
// about the body origin and expressed in G:
// [[I_G, m[c]x], [-m[c]x, m*1]] with c = R_GB*com.
func (mp MassProperties) SpatialInertia(R_GB Mat33) SpatialMat {
	IG := R_GB.Mul(mp.Inertia).Mul(R_GB.T())
	cG := R_GB.MulVec(mp.COM)
	mC := CrossMat(cG).Scale(mp.Mass)
	return SpatialMat{
		{IG, mC},
		{mC.Scale(-1), Identity33().Scale(mp.Mass)},
	}
}

// Gyroscopic returns the velocity-dependent inertial force
// [w x (I_G w) ; m w x (w x c_G)] for angular velocity w in G.
func (mp MassProperties) Gyroscopic(R_GB Mat33, w Vec3) SpatialVec {
	IG := R_GB.Mul(mp.Inertia).Mul(R_GB.T())
	cG := R_GB.MulVec(mp.COM)
	return SpatialVec{
		Ang: w.Cross(IG.MulVec(w)),
		Lin: w.Cross(w.Cross(cG)).Scale(mp.Mass),
	}
}
