package stage

// Entry is a lazily evaluated cache record. Its value may be computed any
// time the ledger has reached DependsOn; it stays valid until that stage
// (or an earlier one) is invalidated or the entry is invalidated directly.
type Entry[T any] struct {
	dependsOn Stage
	value     T
	valid     bool
	stamp     uint64
	evals     uint64
}

// NewEntry returns an invalid entry holding init as its storage.
func NewEntry[T any](dependsOn Stage, init T) *Entry[T] {
	return &Entry[T]{dependsOn: dependsOn, value: init}
}

func (e *Entry[T]) DependsOn() Stage { return e.dependsOn }

// IsValid reports whether the cached value can be used as is.
func (e *Entry[T]) IsValid(l *Ledger) bool {
	return e.valid && l.current >= e.dependsOn && e.stamp == l.versions[e.dependsOn]
}

// Get returns the value, running eval on the entry's storage first if the
// entry is stale. eval must overwrite everything it depends on.
func (e *Entry[T]) Get(l *Ledger, op string, eval func(*T)) *T {
	l.Require(e.dependsOn, op)
	if !e.IsValid(l) {
		eval(&e.value)
		e.evals++
		e.MarkValid(l)
	}
	return &e.value
}

// Value returns the cached value and panics if it is not valid.
func (e *Entry[T]) Value(l *Ledger, op string) *T {
	l.Require(e.dependsOn, op)
	if !e.IsValid(l) {
		panic(&ContractViolation{Op: op + " (cache not realized)", Required: e.dependsOn, Current: l.current})
	}
	return &e.value
}

// Upd exposes the storage for in-place computation; callers must finish
// with MarkValid.
func (e *Entry[T]) Upd() *T { return &e.value }

func (e *Entry[T]) MarkValid(l *Ledger) {
	e.valid = true
	e.stamp = l.versions[e.dependsOn]
}

func (e *Entry[T]) Invalidate() { e.valid = false }

// EvaluationCount is the number of times Get had to evaluate.
func (e *Entry[T]) EvaluationCount() uint64 { return e.evals }
