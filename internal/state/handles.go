package state

import "github.com/san-kum/rigidtree/internal/stage"

// Discrete is a typed handle to a discrete variable owned at a stage.
type Discrete[T any] struct {
	index int
}

// AllocateDiscrete adds a variable owned at owner with initial value init.
// Values implementing Clone() T are deep-copied when the State is cloned.
func AllocateDiscrete[T any](s *State, owner stage.Stage, init T) (Discrete[T], error) {
	if err := s.allocating(); err != nil {
		return Discrete[T]{}, err
	}
	clone := func(v any) any {
		if c, ok := v.(interface{ Clone() T }); ok {
			return c.Clone()
		}
		return v
	}
	s.discrete = append(s.discrete, discreteVar{owner: owner, value: init, clone: clone})
	return Discrete[T]{index: len(s.discrete) - 1}, nil
}

// Get reads the variable.
func (h Discrete[T]) Get(s *State) T {
	return s.discrete[h.index].value.(T)
}

// Set replaces the variable and invalidates its owning stage.
func (h Discrete[T]) Set(s *State, v T) {
	d := &s.discrete[h.index]
	d.value = v
	s.ledger.Invalidate(d.owner)
}

// Update applies fn to a copy of the value and stores the result.
func (h Discrete[T]) Update(s *State, fn func(*T)) {
	v := h.Get(s)
	fn(&v)
	h.Set(s, v)
}

// Cache is a typed handle to a lazily evaluated cache entry.
type Cache[T any] struct {
	index int
}

// AllocateCache adds an entry that may be evaluated once the state reaches
// dependsOn. newValue builds fresh storage, for this state and its clones.
func AllocateCache[T any](s *State, dependsOn stage.Stage, newValue func() T) (Cache[T], error) {
	if err := s.allocating(); err != nil {
		return Cache[T]{}, err
	}
	fresh := func() any { return stage.NewEntry(dependsOn, newValue()) }
	s.caches = append(s.caches, cacheSlot{entry: fresh(), fresh: fresh})
	return Cache[T]{index: len(s.caches) - 1}, nil
}

// Entry exposes the underlying record.
func (h Cache[T]) Entry(s *State) *stage.Entry[T] {
	return s.caches[h.index].entry.(*stage.Entry[T])
}

// Get evaluates the entry if needed and returns its value.
func (h Cache[T]) Get(s *State, op string, eval func(*T)) *T {
	return h.Entry(s).Get(&s.ledger, op, eval)
}

// Value returns an already realized value, panicking if it is stale.
func (h Cache[T]) Value(s *State, op string) *T {
	return h.Entry(s).Value(&s.ledger, op)
}

func (h Cache[T]) IsValid(s *State) bool {
	return h.Entry(s).IsValid(&s.ledger)
}

func (h Cache[T]) EvaluationCount(s *State) uint64 {
	return h.Entry(s).EvaluationCount()
}
