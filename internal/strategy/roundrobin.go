package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
)

// RoundRobinStrategy hands out backends in list order, wrapping at the end.
// The cursor always stays in [0, len(backends)).
type RoundRobinStrategy struct {
	cursor atomic.Uint64
}

// SelectBackend returns backends[cursor] and advances the cursor modulo the
// list length. Concurrent callers each get a distinct slot in the cycle.
func (rb *RoundRobinStrategy) SelectBackend(backends []*backend.Backend) *backend.Backend {
	n := uint64(len(backends))
	if n == 0 {
		return nil
	}

	for {
		current := rb.cursor.Load()
		index := current % n
		if rb.cursor.CompareAndSwap(current, (index+1)%n) {
			return backends[index]
		}
	}
}

// Cursor returns the index the next selection will use.
func (rb *RoundRobinStrategy) Cursor() uint64 {
	return rb.cursor.Load()
}

func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}
