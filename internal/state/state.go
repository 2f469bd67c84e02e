package state

import (
	"errors"
	"fmt"

	"github.com/san-kum/rigidtree/internal/stage"
)

var ErrAllocationClosed = errors.New("state: variables can only be allocated before Topology is realized")

// State holds every variable and cache entry for one simulated system.
// Variables are owned at a stage: changing one invalidates that stage and
// everything after it. A State is not safe for concurrent mutation;
// independent States may be advanced on separate goroutines.
type State struct {
	ledger stage.Ledger

	t       float64
	q, u, z []float64

	discrete []discreteVar
	caches   []cacheSlot
}

type discreteVar struct {
	owner stage.Stage
	value any
	clone func(any) any
}

type cacheSlot struct {
	entry any
	fresh func() any
}

func New() *State {
	return &State{}
}

func (s *State) Ledger() *stage.Ledger { return &s.ledger }

// Stage is the level the state is currently realized to.
func (s *State) Stage() stage.Stage { return s.ledger.Current() }

// Require panics with a contract violation unless s is realized to st.
func (s *State) Require(st stage.Stage, op string) { s.ledger.Require(st, op) }

// Advance records that st has been realized. Realization itself is driven
// by the owning system, which computes each stage in order.
func (s *State) Advance(st stage.Stage) { s.ledger.Advance(st) }

// Invalidate marks st and every later stage stale.
func (s *State) Invalidate(st stage.Stage) { s.ledger.Invalidate(st) }

func (s *State) allocating() error {
	if s.ledger.Current() >= stage.Topology {
		return ErrAllocationClosed
	}
	return nil
}

// AllocateQ reserves n generalized coordinates and returns their offset.
func (s *State) AllocateQ(n int) (int, error) {
	if err := s.allocating(); err != nil {
		return 0, err
	}
	off := len(s.q)
	s.q = append(s.q, make([]float64, n)...)
	return off, nil
}

// AllocateU reserves n generalized speeds.
func (s *State) AllocateU(n int) (int, error) {
	if err := s.allocating(); err != nil {
		return 0, err
	}
	off := len(s.u)
	s.u = append(s.u, make([]float64, n)...)
	return off, nil
}

// AllocateZ reserves n auxiliary continuous variables.
func (s *State) AllocateZ(n int) (int, error) {
	if err := s.allocating(); err != nil {
		return 0, err
	}
	off := len(s.z)
	s.z = append(s.z, make([]float64, n)...)
	return off, nil
}

func (s *State) NQ() int { return len(s.q) }
func (s *State) NU() int { return len(s.u) }
func (s *State) NZ() int { return len(s.z) }

func (s *State) Time() float64 { return s.t }

// SetTime changes t and invalidates Time.
func (s *State) SetTime(t float64) {
	s.t = t
	s.ledger.Invalidate(stage.Time)
}

// Q returns the coordinates; callers must not modify the slice.
func (s *State) Q() []float64 { return s.q }
func (s *State) U() []float64 { return s.u }
func (s *State) Z() []float64 { return s.z }

// UpdQ gives write access to q and invalidates Position.
func (s *State) UpdQ() []float64 {
	s.ledger.Invalidate(stage.Position)
	return s.q
}

// UpdU gives write access to u and invalidates Velocity.
func (s *State) UpdU() []float64 {
	s.ledger.Invalidate(stage.Velocity)
	return s.u
}

// UpdZ gives write access to z and invalidates Dynamics.
func (s *State) UpdZ() []float64 {
	s.ledger.Invalidate(stage.Dynamics)
	return s.z
}

func (s *State) SetQ(q []float64) error {
	if len(q) != len(s.q) {
		return fmt.Errorf("state: q has %d entries, want %d", len(q), len(s.q))
	}
	copy(s.UpdQ(), q)
	return nil
}

func (s *State) SetU(u []float64) error {
	if len(u) != len(s.u) {
		return fmt.Errorf("state: u has %d entries, want %d", len(u), len(s.u))
	}
	copy(s.UpdU(), u)
	return nil
}

func (s *State) SetZ(z []float64) error {
	if len(z) != len(s.z) {
		return fmt.Errorf("state: z has %d entries, want %d", len(z), len(s.z))
	}
	copy(s.UpdZ(), z)
	return nil
}

// Clone copies time, continuous and discrete variables. Cache entries in
// the copy start out stale and the copy is realized no further than
// Instance.
func (s *State) Clone() *State {
	c := &State{
		ledger: s.ledger,
		t:      s.t,
		q:      append([]float64(nil), s.q...),
		u:      append([]float64(nil), s.u...),
		z:      append([]float64(nil), s.z...),
	}
	c.discrete = make([]discreteVar, len(s.discrete))
	for i, d := range s.discrete {
		c.discrete[i] = discreteVar{owner: d.owner, value: d.clone(d.value), clone: d.clone}
	}
	c.caches = make([]cacheSlot, len(s.caches))
	for i, cs := range s.caches {
		c.caches[i] = cacheSlot{entry: cs.fresh(), fresh: cs.fresh}
	}
	if c.ledger.Current() > stage.Instance {
		c.ledger.Invalidate(stage.Time)
	}
	return c
}
