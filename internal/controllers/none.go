// Package controllers computes mobility actuation: the control vector a
// system adds to its generalized forces, one entry per mobility.
package controllers

import "github.com/san-kum/rigidtree/internal/dynamo"

type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{dim: dim}
}

func (n *None) Compute(dynamo.State, float64) dynamo.Control {
	return make(dynamo.Control, n.dim)
}
