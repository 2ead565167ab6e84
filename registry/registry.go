// Package registry maps external 64-bit user-ids (typically MAC
// addresses) to dense, small 32-bit stream-ids, via a fixed number of
// small sorted shards selected by a bit-slice of the user-id.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package registry

import (
	"sync"

	"github.com/jkluft/conartist/cmn/cos"
)

// StreamID is the dense, small integer a user-id maps to.
type StreamID uint32

// Registry is mutated only from the control thread in the common case,
// but is internally synchronized so callers that share it across
// goroutines (e.g. a metrics reader) don't need external locking.
type Registry struct {
	mu        sync.RWMutex
	userIDs   []uint64   // dense array; index == StreamID
	shards    [][]uint32 // shard -> dense indices, sorted by userIDs[idx]
	shardMask uint32
	capacity  int
}

// New creates a registry with room for capacity distinct user-ids,
// spread across 2^shardBits shards.
func New(capacity, shardBits int) *Registry {
	if shardBits < 0 {
		shardBits = 0
	}
	shardCount := 1 << uint(shardBits)
	return &Registry{
		userIDs:   make([]uint64, 0, capacity),
		shards:    make([][]uint32, shardCount),
		shardMask: uint32(shardCount - 1),
		capacity:  capacity,
	}
}

// shardOf selects bits 32 and above of id, masked by shardCount-1 — the
// resolution of the upper-vs-lower-bits ambiguity the source variants
// disagreed on (see DESIGN.md).
func (r *Registry) shardOf(id uint64) uint32 {
	return uint32(id>>32) & r.shardMask
}

// Register returns the existing stream-id for id if already known,
// otherwise allocates the next dense id and inserts it into its shard in
// user-id order. Returns cos.ErrCapacityExceeded once capacity is exhausted.
func (r *Registry) Register(id uint64) (sid StreamID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shard := r.shardOf(id)
	entries := r.shards[shard]
	pos := linearSearch(r.userIDs, entries, id)
	if pos < len(entries) && r.userIDs[entries[pos]] == id {
		return StreamID(entries[pos]), nil
	}
	if len(r.userIDs) >= r.capacity {
		return 0, cos.ErrCapacityExceeded
	}

	idx := uint32(len(r.userIDs))
	r.userIDs = append(r.userIDs, id)

	entries = append(entries, 0)
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = idx
	r.shards[shard] = entries

	return StreamID(idx), nil
}

// Find looks up an existing mapping without creating one.
func (r *Registry) Find(id uint64) (sid StreamID, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shard := r.shardOf(id)
	entries := r.shards[shard]
	pos := linearSearch(r.userIDs, entries, id)
	if pos < len(entries) && r.userIDs[entries[pos]] == id {
		return StreamID(entries[pos]), true
	}
	return 0, false
}

// linearSearch returns the first index in entries whose user-id is >= id.
// Shards are intentionally tiny (a handful of entries), so a linear scan
// beats a binary search in practice and is simpler to keep correct under
// concurrent inserts.
func linearSearch(userIDs []uint64, entries []uint32, id uint64) int {
	for i, idx := range entries {
		if userIDs[idx] >= id {
			return i
		}
	}
	return len(entries)
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userIDs)
}

// UserID reverses the mapping, for diagnostics.
func (r *Registry) UserID(sid StreamID) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(sid) >= len(r.userIDs) {
		return 0, false
	}
	return r.userIDs[sid], true
}
