package integrators

import (
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. Row 6 holds the fifth-order weights, so the
// seventh stage is evaluated at the solution itself.
var (
	dpNodes = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}

	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}

	// fifth minus fourth order weights
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

// RK45 is the adaptive Dormand-Prince scheme. When the system is a
// Projector, the candidate state is projected and the error estimate loses
// its constraint-normal part before the step is judged.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k       [7]dynamo.State
	scratch dynamo.State
	errEst  dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
		r.errEst = make(dynamo.State, n)
	}
}

// Step takes one fifth-order step of size dt without error control.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	newX, _, _ := r.StepAdaptive(dyn, x, c, t, dt, 1e-6)
	return newX
}

func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, c dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k[0], dyn.Derive(x, c, t))
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += dpA[s][j] * r.k[j][i]
			}
			r.scratch[i] = x[i] + dt*sum
		}
		copy(r.k[s], dyn.Derive(r.scratch, c, t+dpNodes[s]*dt))
	}
	// the last stage was evaluated at the solution
	xNew := r.scratch.Clone()

	for i := 0; i < n; i++ {
		sum := 0.0
		for j := range dpE {
			sum += dpE[j] * r.k[j][i]
		}
		r.errEst[i] = dt * sum
	}
	if p, ok := dyn.(dynamo.Projector); ok {
		p.Project(xNew, r.errEst)
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		scale := math.Abs(x[i]) + math.Abs(dt*r.k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(r.errEst[i])/scale)
	}
	errRatio := errMax / tol

	switch {
	case math.IsNaN(errRatio):
		return xNew, dt * r.minScale, dynamo.ErrStepRejected
	case errRatio > 1:
		scale := math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
		return xNew, dt * scale, dynamo.ErrStepRejected
	case errRatio > 0:
		scale := math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
		return xNew, dt * scale, nil
	}
	return xNew, dt * r.maxScale, nil
}
