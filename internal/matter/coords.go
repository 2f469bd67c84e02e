package matter

import (
	"fmt"
	"math"

	"github.com/san-kum/rigidtree/internal/state"
)

// QDot returns qdot = N(q)*u. Requires Velocity.
func (t *Tree) QDot(s *state.State) []float64 {
	return t.Velocity(s).QDot
}

// UDot returns the generalized accelerations. Requires Acceleration.
func (t *Tree) UDot(s *state.State) []float64 {
	return t.Acceleration(s).UDot
}

// QDotDot returns N*udot + NDot*u. Requires Acceleration.
func (t *Tree) QDotDot(s *state.State) []float64 {
	return t.Acceleration(s).QDotDot
}

// MultiplyByN computes qdot = N(q)*u for an arbitrary u, reading q from s.
func (t *Tree) MultiplyByN(s *state.State, u, qdot []float64) error {
	if err := t.checkLen("u", len(u), t.nu); err != nil {
		return err
	}
	if err := t.checkLen("qdot", len(qdot), t.nq); err != nil {
		return err
	}
	q := t.q(s)
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		n.mob.QDot(n.qs(q), n.us(u), n.qs(qdot))
	}
	return nil
}

// MultiplyByNInv computes u = NInv(q)*qdot.
func (t *Tree) MultiplyByNInv(s *state.State, qdot, u []float64) error {
	if err := t.checkLen("qdot", len(qdot), t.nq); err != nil {
		return err
	}
	if err := t.checkLen("u", len(u), t.nu); err != nil {
		return err
	}
	q := t.q(s)
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		n.mob.UFromQDot(n.qs(q), n.qs(qdot), n.us(u))
	}
	return nil
}

// NumQuaternions counts mobilizers holding a quaternion.
func (t *Tree) NumQuaternions() int {
	c := 0
	for _, n := range t.nodes[1:] {
		c += n.mob.NumQuaternions()
	}
	return c
}

// QuaternionErrors returns |e|-1 for each quaternion in q, in body order.
func (t *Tree) QuaternionErrors(q []float64) []float64 {
	var errs []float64
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		if e, ok := n.mob.QuaternionError(n.qs(q)); ok {
			errs = append(errs, e)
		}
	}
	return errs
}

// MaxQuaternionError is the largest |QuaternionErrors| entry of s.
func (t *Tree) MaxQuaternionError(s *state.State) float64 {
	var m float64
	for _, e := range t.QuaternionErrors(t.q(s)) {
		m = math.Max(m, math.Abs(e))
	}
	return m
}

// EnforceQuaternionConstraints normalizes every quaternion in q and removes
// the component along it from qErr, which may be nil. It reports whether
// q held any quaternion.
func (t *Tree) EnforceQuaternionConstraints(q, qErr []float64) bool {
	changed := false
	for i := 1; i < len(t.nodes); i++ {
		n := &t.nodes[i]
		var e []float64
		if qErr != nil {
			e = n.qs(qErr)
		}
		if n.mob.EnforceQuaternion(n.qs(q), e) {
			changed = true
		}
	}
	return changed
}

// ProjectQ normalizes the quaternions held in s, invalidating Position only
// when there are any.
func (t *Tree) ProjectQ(s *state.State, qErr []float64) bool {
	if t.NumQuaternions() == 0 {
		return false
	}
	return t.EnforceQuaternionConstraints(t.updQ(s), qErr)
}

// ConvertToEulerAngles maps q, laid out for t, onto the layout of
// t.EulerVariant(true).
func (t *Tree) ConvertToEulerAngles(q []float64) ([]float64, error) {
	return t.convertQ(q, true)
}

// ConvertToQuaternions maps q onto the layout of t.EulerVariant(false).
func (t *Tree) ConvertToQuaternions(q []float64) ([]float64, error) {
	return t.convertQ(q, false)
}

func (t *Tree) convertQ(q []float64, euler bool) ([]float64, error) {
	if err := t.checkLen("q", len(q), t.nq); err != nil {
		return nil, err
	}
	to := t.EulerVariant(euler)
	out := make([]float64, to.nq)
	for i := 1; i < len(t.nodes); i++ {
		n, m := &t.nodes[i], &to.nodes[i]
		var err error
		if euler {
			err = n.mob.ConvertToEulerAngles(n.qs(q), m.qs(out))
		} else {
			err = n.mob.ConvertToQuaternions(n.qs(q), m.qs(out))
		}
		if err != nil {
			return nil, fmt.Errorf("matter: body %q: %w", n.name, err)
		}
	}
	return out, nil
}
