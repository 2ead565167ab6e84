// Package job implements a fixed-size worker pool that executes opaque
// jobs and delivers their completions through per-caller completion
// rings, decoupling the work (e.g. creating a stream file) from the
// thread that needs to know it finished.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package job

import (
	"sync"
	"sync/atomic"

	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/debug"
	"github.com/jkluft/conartist/cmn/mono"
	"github.com/jkluft/conartist/cmn/nlog"
)

// Fn is an opaque unit of work. It must never be nil.
type Fn func(arg0, arg1 any)

// ChannelID names one caller's completion ring.
type ChannelID int

type jobRec struct {
	channel ChannelID
	fn      Fn
	arg0    any
	arg1    any
}

type completion struct {
	arg0 any
	arg1 any
}

// complRing is a bounded completion queue private to one channel.
type complRing struct {
	mu            sync.Mutex
	hasCompleted  sync.Cond
	roomCompleted sync.Cond
	items         []completion
	head, count   int
}

func newComplRing(capacity int) *complRing {
	r := &complRing{items: make([]completion, capacity)}
	r.hasCompleted.L = &r.mu
	r.roomCompleted.L = &r.mu
	return r
}

func (r *complRing) cap() int { return len(r.items) }

// push blocks while the ring is full, guaranteeing delivery of a
// completion for work that has already executed — even in drop mode,
// per the resolved ambiguity in DESIGN.md: only unstarted jobs are
// discarded, never the completion of one that has already run.
func (r *complRing) push(c completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count == len(r.items) {
		r.roomCompleted.Wait()
	}
	tail := (r.head + r.count) % len(r.items)
	r.items[tail] = c
	r.count++
	r.hasCompleted.Signal()
}

func (r *complRing) tryPop() (completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return completion{}, false
	}
	return r.popLocked(), true
}

func (r *complRing) popLocked() completion {
	c := r.items[r.head]
	r.head = (r.head + 1) % len(r.items)
	r.count--
	r.roomCompleted.Signal()
	return c
}

func (r *complRing) waitPop(stoppedAndIdle func() bool) (completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count == 0 && !stoppedAndIdle() {
		r.hasCompleted.Wait()
	}
	if r.count == 0 {
		return completion{}, false
	}
	return r.popLocked(), true
}

func (r *complRing) wake() {
	r.mu.Lock()
	r.hasCompleted.Broadcast()
	r.roomCompleted.Broadcast()
	r.mu.Unlock()
}

// Manager is a pool of worker goroutines draining a single shared pending
// ring and fanning completions out to per-channel rings.
type Manager struct {
	mu      sync.Mutex
	hasJobs sync.Cond
	pending []jobRec

	channels    []*complRing
	maxChannels int

	stopping  bool
	dropMode  bool
	eg        *errgroup.Group
	id        string

	lastLatencyNS int64 // ns spent in the most recently completed fn, read via atomic
}

// New builds a job manager with nWorkers goroutines, a pending ring of
// pendingCap jobs, and room for up to maxChannels completion rings
// (InitChannel fails past that count).
func New(nWorkers, pendingCap, maxChannels int) *Manager {
	id, _ := shortid.Generate()
	m := &Manager{
		pending:     make([]jobRec, 0, pendingCap),
		maxChannels: maxChannels,
		eg:          &errgroup.Group{},
		id:          id,
	}
	m.hasJobs.L = &m.mu
	for i := 0; i < nWorkers; i++ {
		m.eg.Go(m.workerLoop)
	}
	return m
}

func (m *Manager) pendingCap() int { return cap(m.pending) }

// InitChannel allocates a new completion ring and returns its id.
func (m *Manager) InitChannel(capacity int) (ChannelID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.channels) >= m.maxChannels {
		return 0, cos.ErrCapacityExceeded
	}
	m.channels = append(m.channels, newComplRing(capacity))
	return ChannelID(len(m.channels) - 1), nil
}

func (m *Manager) channel(id ChannelID) *complRing {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Assert(int(id) < len(m.channels), "unknown channel")
	return m.channels[id]
}

// Submit is a non-blocking push onto the pending ring. It fails if the
// manager is stopping, the ring is full, or fn is nil.
func (m *Manager) Submit(channel ChannelID, fn Fn, arg0, arg1 any) error {
	if fn == nil {
		return cos.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return cos.ErrStopped
	}
	if len(m.pending) >= cap(m.pending) {
		return cos.ErrCapacityExceeded
	}
	m.pending = append(m.pending, jobRec{channel: channel, fn: fn, arg0: arg0, arg1: arg1})
	m.hasJobs.Signal()
	return nil
}

// PopCompleted is a non-blocking pop from channel's completion ring.
func (m *Manager) PopCompleted(channel ChannelID) (arg0, arg1 any, ok bool) {
	c, got := m.channel(channel).tryPop()
	return c.arg0, c.arg1, got
}

// PopCompletedWait blocks until a completion is available, or until the
// manager is stopping with its pending ring empty (signaling no further
// completions will ever arrive on this channel).
func (m *Manager) PopCompletedWait(channel ChannelID) (arg0, arg1 any, ok bool) {
	ring := m.channel(channel)
	c, got := ring.waitPop(m.stoppedAndPendingEmpty)
	return c.arg0, c.arg1, got
}

// LatencyNS returns how long the most recently completed job spent in its
// Fn, measured with the monotonic clock so a wall-clock step doesn't skew
// it. Zero until the first job completes.
func (m *Manager) LatencyNS() int64 {
	return atomic.LoadInt64(&m.lastLatencyNS)
}

func (m *Manager) stoppedAndPendingEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopping && len(m.pending) == 0
}

func (m *Manager) workerLoop() error {
	for {
		m.mu.Lock()
		for len(m.pending) == 0 && !m.stopping {
			m.hasJobs.Wait()
		}
		if m.stopping && len(m.pending) == 0 {
			m.mu.Unlock()
			return nil
		}
		j := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		started := mono.NanoTime()
		j.fn(j.arg0, j.arg1)
		atomic.StoreInt64(&m.lastLatencyNS, mono.NanoTime()-started)

		ring := m.channel(j.channel)
		ring.push(completion{arg0: j.arg0, arg1: j.arg1})
	}
}

// Stop transitions the manager to stopping. With drain=false the pending
// ring is discarded outright (queued work is abandoned; owners retain
// payload ownership). With drain=true, workers keep consuming the
// pending ring until empty. Either way, every completion push already in
// flight is still guaranteed delivery. Stop blocks until
// every worker has exited.
func (m *Manager) Stop(drain bool) {
	m.mu.Lock()
	m.stopping = true
	if !drain {
		m.dropMode = true
		m.pending = m.pending[:0]
	}
	m.hasJobs.Broadcast()
	m.mu.Unlock()

	for _, ch := range m.channels {
		ch.wake()
	}
	if err := m.eg.Wait(); err != nil {
		nlog.Errorf("job manager %s: worker exited with error: %v", m.id, err)
	}
}
