package sim

import (
	"sync"

	"github.com/san-kum/rigidtree/internal/dynamo"
)

// StatePool recycles integration vectors of one size, e.g. the [q; u; z]
// vectors of an ensemble whose members share a topology.
type StatePool struct {
	pool sync.Pool
	size int
}

func NewStatePool(stateSize int) *StatePool {
	return &StatePool{
		size: stateSize,
		pool: sync.Pool{
			New: func() any {
				return make(dynamo.State, stateSize)
			},
		},
	}
}

func (p *StatePool) Get() dynamo.State {
	return p.pool.Get().(dynamo.State)
}

// Put zeroes s and returns it; vectors of the wrong size are dropped.
func (p *StatePool) Put(s dynamo.State) {
	if len(s) == p.size {
		clear(s)
		p.pool.Put(s)
	}
}

func (p *StatePool) GetAndCopy(src dynamo.State) dynamo.State {
	dst := p.Get()
	copy(dst, src)
	return dst
}
