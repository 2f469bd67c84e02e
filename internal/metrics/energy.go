package metrics

import (
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Energy averages the total mechanical energy over observed states.
type Energy struct {
	h       dynamo.Hamiltonian
	sum     float64
	samples int
}

func NewEnergy(h dynamo.Hamiltonian) *Energy { return &Energy{h: h} }

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	v := e.h.Energy(x)
	if math.IsNaN(v) {
		return
	}
	e.sum += v
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *Energy) Reset() {
	e.sum = 0
	e.samples = 0
}

// EnergyDrift is the largest deviation of energy from its first observed
// value, relative to that value when it is not tiny, absolute otherwise.
type EnergyDrift struct {
	h        dynamo.Hamiltonian
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(h dynamo.Hamiltonian) *EnergyDrift { return &EnergyDrift{h: h} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	energy := e.h.Energy(x)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	drift := math.Abs(energy - e.initial)
	if math.Abs(e.initial) > 1e-9 {
		drift /= math.Abs(e.initial)
	}
	if math.IsNaN(drift) {
		drift = math.Inf(1)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
