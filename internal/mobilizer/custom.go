package mobilizer

import "github.com/san-kum/rigidtree/internal/spatial"

// CustomImpl supplies the kinematics of a user-defined mobilizer with 1 to
// 6 speeds. All frames are the unreversed F and M; reversal is applied on
// top by Mobilizer.
//
// When NAngles returns 4 the leading four coordinates are a quaternion and
// Transform, HMul and HDotMul receive it normalized. Fits and the kinematic
// maps receive q as stored.
type CustomImpl interface {
	NQ() int
	NU() int
	NAngles() int

	Transform(q []float64) spatial.Transform
	// HMul returns H_FM*u expressed in F.
	HMul(q, u []float64) spatial.SpatialVec
	// HDotMul returns HDot_FM*v for the motion (q, u).
	HDotMul(q, u, v []float64) spatial.SpatialVec

	QDot(q, u, qdot []float64)
	QDotDot(q, u, udot, qdotdot []float64)
	UFromQDot(q, qdot, u []float64)

	FitTransform(X_FM spatial.Transform, q []float64)
	FitVelocity(q []float64, V_FM spatial.SpatialVec, u []float64)
}

// Coordinates is embeddable by CustomImpl types whose q and u coincide.
type Coordinates struct{ N int }

func (c Coordinates) NQ() int      { return c.N }
func (c Coordinates) NU() int      { return c.N }
func (c Coordinates) NAngles() int { return 0 }

func (c Coordinates) QDot(_, u, qdot []float64)             { copy(qdot, u[:c.N]) }
func (c Coordinates) QDotDot(_, _, udot, qdotdot []float64) { copy(qdotdot, udot[:c.N]) }
func (c Coordinates) UFromQDot(_, qdot, u []float64)        { copy(u, qdot[:c.N]) }
