package stage

import "fmt"

// ContractViolation is the panic value raised when an operation runs
// before the stage it depends on has been realized. It is a caller bug,
// never a data error.
type ContractViolation struct {
	Op       string
	Required Stage
	Current  Stage
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("stage: %s requires stage %v but state is only realized to %v",
		c.Op, c.Required, c.Current)
}

// Ledger records how far a state has been realized. Each stage also
// carries a version that is bumped every time the stage is invalidated,
// which is how cache entries detect that their inputs changed.
type Ledger struct {
	current  Stage
	versions [NumStages]uint64
}

func (l *Ledger) Current() Stage { return l.current }

// Version returns the invalidation count for s.
func (l *Ledger) Version(s Stage) uint64 { return l.versions[s] }

// Require panics unless the ledger is realized to at least s.
func (l *Ledger) Require(s Stage, op string) {
	if l.current < s {
		panic(&ContractViolation{Op: op, Required: s, Current: l.current})
	}
}

// Advance marks s realized. Stages must be realized one at a time in
// order; re-advancing an already realized stage is a no-op.
func (l *Ledger) Advance(s Stage) {
	if s <= l.current {
		return
	}
	if s != l.current+1 {
		panic(&ContractViolation{Op: "realize " + s.String(), Required: s - 1, Current: l.current})
	}
	l.current = s
}

// Invalidate drops the realized level below s and bumps the version of s
// and every later stage, so entries computed at or after s are stale.
func (l *Ledger) Invalidate(s Stage) {
	if s <= Empty {
		s = Topology
	}
	for k := s; k <= Report; k++ {
		l.versions[k]++
	}
	if l.current >= s {
		l.current = s - 1
	}
}
