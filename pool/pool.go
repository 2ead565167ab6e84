// Package pool implements fixed-capacity free-list object pools, used for
// packet buffers, TCP write-request records, and connection records.
// Handles are dense slot indices rather than raw pointers (see DESIGN.md):
// that makes pool compaction and slot reuse safe, and keeps the pool free
// of unsafe pointer arithmetic.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pool

import (
	"sync"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/debug"
)

// maxCapacity keeps slot indices representable in a 16-bit free-list entry.
const maxCapacity = 1 << 15

// Slot is an opaque handle into a Pool: a dense index, not a pointer.
type Slot uint16

const NoSlot Slot = 1<<16 - 1

// Pool is a thread-safe fixed-capacity free-list over a contiguous slab
// of T. Acquire never allocates; Release requires a slot obtained from
// this same pool.
type Pool[T any] struct {
	mu    sync.Mutex
	slab  []T
	free  []Slot
	inUse []bool
	tag   string
}

// New builds a pool of the given capacity, zero-valuing every slot.
func New[T any](tag string, capacity int) *Pool[T] {
	if capacity <= 0 || capacity > maxCapacity {
		capacity = maxCapacity
	}
	p := &Pool[T]{
		slab:  make([]T, capacity),
		free:  make([]Slot, capacity),
		inUse: make([]bool, capacity),
		tag:   tag,
	}
	for i := range p.free {
		p.free[i] = Slot(capacity - 1 - i)
	}
	return p
}

func (p *Pool[T]) Cap() int { return len(p.slab) }

// Acquire returns a zeroed slot and its handle, or ok=false when the pool
// is exhausted. Exhaustion is reported, never silently grown.
func (p *Pool[T]) Acquire() (slot Slot, val *T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return NoSlot, nil, false
	}
	n := len(p.free) - 1
	slot = p.free[n]
	p.free = p.free[:n]
	p.inUse[slot] = true
	var zero T
	p.slab[slot] = zero
	return slot, &p.slab[slot], true
}

// Release returns slot to the free list. Releasing a slot not currently
// acquired from this pool is an invariant violation (checked in debug).
func (p *Pool[T]) Release(slot Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	debug.Assertf(int(slot) < len(p.slab) && p.inUse[slot], "%s: release of foreign/unacquired slot %d", p.tag, slot)
	if int(slot) >= len(p.slab) || !p.inUse[slot] {
		return
	}
	p.inUse[slot] = false
	p.free = append(p.free, slot)
}

// Get dereferences a slot's current value. Safe to call concurrently with
// other Get calls; callers must not call it on a slot they have released.
func (p *Pool[T]) Get(slot Slot) *T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &p.slab[slot]
}

func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slab) - len(p.free)
}

// ErrExhausted is returned by callers that need an error rather than a
// boolean when Acquire fails.
var ErrExhausted = cos.ErrCapacityExceeded
