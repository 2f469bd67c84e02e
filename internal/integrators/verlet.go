package integrators

import "github.com/san-kum/rigidtree/internal/dynamo"

// Verlet is velocity Verlet. For a dynamo.SecondOrder system positions
// advance with qdotdot, so quaternion coordinates follow their own
// kinematics; speeds and auxiliary variables take the trapezoid of the
// derivatives at both ends, the far end evaluated at predicted speeds.
// Other systems are treated as [positions; velocities] halves.
type Verlet struct {
	scratch dynamo.State
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) ensureScratch(n int) {
	if len(v.scratch) != n {
		v.scratch = make(dynamo.State, n)
	}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	if so, ok := dyn.(dynamo.SecondOrder); ok {
		return v.stepSecondOrder(so, x, c, t, dt)
	}

	n := len(x)
	half := n / 2
	v.ensureScratch(n)

	result := make(dynamo.State, n)
	dx := dyn.Derive(x, c, t)
	dt2 := dt * dt

	for i := 0; i < half; i++ {
		result[i] = x[i] + x[half+i]*dt + 0.5*dx[half+i]*dt2
	}

	for i := 0; i < half; i++ {
		v.scratch[i] = result[i]
		v.scratch[half+i] = x[half+i]
	}

	dxNew := dyn.Derive(v.scratch, c, t+dt)

	halfDt := 0.5 * dt
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + (dx[half+i]+dxNew[half+i])*halfDt
	}

	return result
}

func (v *Verlet) stepSecondOrder(dyn dynamo.SecondOrder, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	nq, _, _ := dyn.Split()
	n := len(x)
	v.ensureScratch(n)

	dx, qdd := dyn.Accelerations(x, c, t)
	dt2 := 0.5 * dt * dt
	for i := 0; i < nq; i++ {
		v.scratch[i] = x[i] + dx[i]*dt + qdd[i]*dt2
	}
	for i := nq; i < n; i++ {
		v.scratch[i] = x[i] + dx[i]*dt
	}

	dxNew := dyn.Derive(v.scratch, c, t+dt)

	result := v.scratch.Clone()
	halfDt := 0.5 * dt
	for i := nq; i < n; i++ {
		result[i] = x[i] + (dx[i]+dxNew[i])*halfDt
	}
	return result
}

// Leapfrog is kick-drift-kick. For a dynamo.SecondOrder system the drift
// uses qdot evaluated at the half-step speeds.
type Leapfrog struct {
	scratch dynamo.State
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Step(dyn dynamo.System, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	if so, ok := dyn.(dynamo.SecondOrder); ok {
		return l.stepSecondOrder(so, x, c, t, dt)
	}

	n := len(x)
	half := n / 2

	if len(l.scratch) != n {
		l.scratch = make(dynamo.State, n)
	}

	result := make(dynamo.State, n)
	dx := dyn.Derive(x, c, t)
	halfDt := dt * 0.5

	for i := 0; i < half; i++ {
		l.scratch[half+i] = x[half+i] + dx[half+i]*halfDt
	}

	for i := 0; i < half; i++ {
		result[i] = x[i] + l.scratch[half+i]*dt
		l.scratch[i] = result[i]
	}

	dxNew := dyn.Derive(l.scratch, c, t+dt)

	for i := 0; i < half; i++ {
		result[half+i] = l.scratch[half+i] + dxNew[half+i]*halfDt
	}

	return result
}

func (l *Leapfrog) stepSecondOrder(dyn dynamo.SecondOrder, x dynamo.State, c dynamo.Control, t, dt float64) dynamo.State {
	nq, _, _ := dyn.Split()
	n := len(x)
	halfDt := 0.5 * dt

	dx := dyn.Derive(x, c, t)
	kicked := x.Clone()
	for i := nq; i < n; i++ {
		kicked[i] += dx[i] * halfDt
	}

	drift := dyn.Derive(kicked, c, t+halfDt)
	for i := 0; i < nq; i++ {
		kicked[i] += drift[i] * dt
	}

	dxNew := dyn.Derive(kicked, c, t+dt)
	for i := nq; i < n; i++ {
		kicked[i] += dxNew[i] * halfDt
	}
	return kicked
}
