package integrators

import "github.com/san-kum/rigidtree/internal/dynamo"

var rk4Nodes = [4]float64{0, 0.5, 0.5, 1}

// RK4 is the classical fourth-order Runge-Kutta scheme. Stage vectors are
// reused across steps.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	r.ensureScratch(len(x))

	copy(r.k[0], dyn.Derive(x, c, t))
	for s := 1; s < 4; s++ {
		h := rk4Nodes[s] * dt
		for i := range x {
			r.scratch[i] = x[i] + h*r.k[s-1][i]
		}
		copy(r.k[s], dyn.Derive(r.scratch, c, t+h))
	}

	result := make(dynamo.State, len(x))
	dt6 := dt / 6.0
	for i := range x {
		result[i] = x[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return result
}
