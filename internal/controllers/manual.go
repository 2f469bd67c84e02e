package controllers

import (
	"slices"
	"sync"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// Manual returns whatever control was last set, for interactive use. It is
// safe to set from a UI goroutine while a simulation reads it.
type Manual struct {
	mu sync.Mutex
	c  dynamo.Control
}

func NewManual(dim int) *Manual {
	return &Manual{c: make(dynamo.Control, dim)}
}

// Set replaces entry i; out of range indices are ignored.
func (m *Manual) Set(i int, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= 0 && i < len(m.c) {
		m.c[i] = v
	}
}

func (m *Manual) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.c)
}

func (m *Manual) Compute(dynamo.State, float64) dynamo.Control {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.c)
}
