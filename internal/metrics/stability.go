package metrics

import (
	"math"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Splitter reports the [q; u; z] block sizes of a flat state.
type Splitter interface {
	Split() (nq, nu, nz int)
}

// Stability is the fraction of observed states that are finite with every
// bounded entry inside ±threshold. Joint angles wind freely, so for a
// multibody state only the generalized speeds are bounded.
type Stability struct {
	threshold float64
	lo, hi    int // bounded range; hi < 0 bounds everything

	unstable, samples int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold, hi: -1}
}

// NewSpeedStability bounds only the u block of sp's states.
func NewSpeedStability(threshold float64, sp Splitter) *Stability {
	nq, nu, _ := sp.Split()
	return &Stability{threshold: threshold, lo: nq, hi: nq + nu}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, _ dynamo.Control, _ float64) {
	s.samples++
	if !s.bounded(x) {
		s.unstable++
	}
}

func (s *Stability) bounded(x dynamo.State) bool {
	lo, hi := s.lo, s.hi
	if hi < 0 || hi > len(x) {
		lo, hi = 0, len(x)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if i >= lo && i < hi && math.Abs(v) > s.threshold {
			return false
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.unstable)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.unstable, s.samples = 0, 0
}
