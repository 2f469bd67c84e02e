package spatial

// Transform X_AB locates frame B in frame A: R is R_AB and P is the
// vector from A's origin to B's origin, expressed in A.
type Transform struct {
	R Mat33
	P Vec3
}

func IdentityTransform() Transform {
	return Transform{R: Identity33()}
}

func NewTransform(R Mat33, p Vec3) Transform {
	return Transform{R: R, P: p}
}

// Translation is a pure translation by p.
func Translation(p Vec3) Transform {
	return Transform{R: Identity33(), P: p}
}

// Compose returns X_AC = X_AB * X_BC.
func (x Transform) Compose(y Transform) Transform {
	return Transform{R: x.R.Mul(y.R), P: x.P.Add(x.R.MulVec(y.P))}
}

// Inverse returns X_BA.
func (x Transform) Inverse() Transform {
	Rt := x.R.T()
	return Transform{R: Rt, P: Rt.MulVec(x.P).Neg()}
}

// Station maps a point measured and expressed in B to A.
func (x Transform) Station(p Vec3) Vec3 {
	return x.P.Add(x.R.MulVec(p))
}
