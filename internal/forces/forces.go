// Package forces provides force elements that add body and mobility forces
// into the matter accumulators. Elements compose additively: each one adds
// its contribution and never overwrites another's.
package forces

import (
	"errors"

	"github.com/san-kum/rigidtree/internal/matter"
	"github.com/san-kum/rigidtree/internal/state"
)

var (
	ErrBadDirection = errors.New("forces: direction must be finite and non-zero")
	ErrBadMagnitude = errors.New("forces: magnitude must be finite and non-negative")
	ErrBadParameter = errors.New("forces: invalid parameter")
)

// Element is one force-producing component.
type Element interface {
	Name() string
	// RealizeTopology allocates the element's state variables and caches.
	RealizeTopology(s *state.State) error
	// CalcForce adds the element's forces for s, realized to Velocity.
	CalcForce(s *state.State, f *matter.Forces)
	// PotentialEnergy is evaluated at Position.
	PotentialEnergy(s *state.State) float64
}

// ZDotter is implemented by elements that own auxiliary z variables.
type ZDotter interface {
	// CalcZDot writes the element's entries of the whole-state zdot.
	CalcZDot(s *state.State, zdot []float64)
}

// Set is an ordered collection of elements acting on one tree.
type Set struct {
	tree  *matter.Tree
	elems []Element
}

func NewSet(tree *matter.Tree, elems ...Element) *Set {
	return &Set{tree: tree, elems: elems}
}

func (fs *Set) Add(e Element) { fs.elems = append(fs.elems, e) }

func (fs *Set) Elements() []Element { return fs.elems }

func (fs *Set) RealizeTopology(s *state.State) error {
	for _, e := range fs.elems {
		if err := e.RealizeTopology(s); err != nil {
			return err
		}
	}
	return nil
}

// CalcForces resets f and accumulates every element into it.
func (fs *Set) CalcForces(s *state.State, f *matter.Forces) {
	f.Reset()
	for _, e := range fs.elems {
		e.CalcForce(s, f)
	}
}

func (fs *Set) PotentialEnergy(s *state.State) float64 {
	var pe float64
	for _, e := range fs.elems {
		pe += e.PotentialEnergy(s)
	}
	return pe
}

// CalcZDot zeroes zdot and lets each ZDotter fill its entries.
func (fs *Set) CalcZDot(s *state.State, zdot []float64) {
	clear(zdot)
	for _, e := range fs.elems {
		if zd, ok := e.(ZDotter); ok {
			zd.CalcZDot(s, zdot)
		}
	}
}

// Find returns the first element with the given name.
func (fs *Set) Find(name string) (Element, bool) {
	for _, e := range fs.elems {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}
