package controllers

import (
	"fmt"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Feedback is linear full-state feedback c = -K (x - target), for gains
// computed offline (an LQR design, say) about an equilibrium.
type Feedback struct {
	K      [][]float64
	Target dynamo.State
}

func NewFeedback(k [][]float64, target dynamo.State) (*Feedback, error) {
	for i, row := range k {
		if len(row) != len(target) {
			return nil, fmt.Errorf("%w: gain row %d has %d entries, state has %d", ErrBadChannel, i, len(row), len(target))
		}
	}
	return &Feedback{K: k, Target: target.Clone()}, nil
}

func (f *Feedback) Compute(x dynamo.State, _ float64) dynamo.Control {
	c := make(dynamo.Control, len(f.K))
	for i, row := range f.K {
		for j, k := range row {
			c[i] -= k * (x[j] - f.Target[j])
		}
	}
	return c
}
