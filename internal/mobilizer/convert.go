package mobilizer

import (
	"fmt"
	"math"

	"github.com/san-kum/rigidtree/internal/spatial"
)

// ConvertToEulerAngles rewrites quaternion-mode coordinates q as the
// Euler-angle coordinates out of m.WithEulerAngles(true). Kinds without
// a dual form copy q unchanged.
func (m Mobilizer) ConvertToEulerAngles(q, out []float64) error {
	if m.kind == Custom && m.rotQ() == 4 {
		return fmt.Errorf("%w: custom mobilizer with quaternion", ErrNoEulerForm)
	}
	if !m.kind.hasOrientation() || m.euler {
		copy(out, q[:m.NQ()])
		return nil
	}
	return m.convert(q, out, m.WithEulerAngles(true))
}

// ConvertToQuaternions is the inverse of ConvertToEulerAngles.
func (m Mobilizer) ConvertToQuaternions(q, out []float64) error {
	if m.kind == Custom && m.rotQ() == 4 {
		return fmt.Errorf("%w: custom mobilizer with quaternion", ErrNoEulerForm)
	}
	if !m.kind.hasOrientation() || !m.euler {
		copy(out, q[:m.NQ()])
		return nil
	}
	return m.convert(q, out, m.WithEulerAngles(false))
}

func (m Mobilizer) convert(q, out []float64, to Mobilizer) error {
	if len(q) < m.NQ() || len(out) < to.NQ() {
		return fmt.Errorf("%w: have %d/%d, need %d/%d", ErrCoordinateSize, len(q), len(out), m.NQ(), to.NQ())
	}
	to.setRotation(m.rotation(q), out)
	copy(out[to.rotQ():to.NQ()], q[m.rotQ():m.NQ()])
	return nil
}

// ConvertSpeeds is the identity for every kind: generalized speeds do not
// depend on the rotation coordinate form.
func ConvertSpeeds(u, out []float64) { copy(out, u) }

// rotationBetween returns the minimal rotation carrying unit vector a onto
// unit vector b.
func rotationBetween(a, b spatial.Vec3) spatial.Mat33 {
	axis := a.Cross(b)
	s := axis.Norm()
	c := a.Dot(b)
	if s < 1e-14 {
		if c > 0 {
			return spatial.Identity33()
		}
		// Half turn about any axis perpendicular to a.
		p := a.Cross(spatial.XAxis)
		if p.NormSqr() < 1e-12 {
			p = a.Cross(spatial.YAxis)
		}
		return spatial.RotAxis(p.Normalize(), math.Pi)
	}
	return spatial.RotAxis(axis.Scale(1/s), math.Atan2(s, c))
}
