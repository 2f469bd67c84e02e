package metrics

import (
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// QuaternionSource reports the worst unit-norm violation among the
// quaternions in a state vector.
type QuaternionSource interface {
	QuaternionError(x dynamo.State) float64
}

// QuaternionDrift tracks the largest quaternion norm error seen. With
// projection enabled it stays near the integrator tolerance.
type QuaternionDrift struct {
	src QuaternionSource
	max float64
}

func NewQuaternionDrift(src QuaternionSource) *QuaternionDrift {
	return &QuaternionDrift{src: src}
}

func (q *QuaternionDrift) Name() string { return "quaternion_drift" }

func (q *QuaternionDrift) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	q.max = math.Max(q.max, q.src.QuaternionError(x))
}

func (q *QuaternionDrift) Value() float64 { return q.max }
func (q *QuaternionDrift) Reset()         { q.max = 0 }
