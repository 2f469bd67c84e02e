package integrators

import "github.com/san-kum/rigidtree/internal/dynamo"

// Euler is the explicit first-order scheme. It is mostly useful as a
// baseline in benchmarks.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t float64, dt float64) dynamo.State {
	return x.Axpy(dt, dyn.Derive(x, c, t))
}
