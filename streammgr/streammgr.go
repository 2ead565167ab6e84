// Package streammgr holds the directory of all open streams: read-only
// historical streams discovered under one level of sub-directories, and
// read-write streams at the base path root, created on demand.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package streammgr

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/nlog"
	"github.com/jkluft/conartist/stream"
)

const (
	rwExt = ".rwstream"
	roExt = ".rostream"
)

// StreamID is an opaque handle: it indexes either the read-write or the
// read-only array, tagged by its high bit. Handles are never persisted,
// so the encoding is an implementation detail.
type StreamID uint32

const rwTag StreamID = 1 << 31

func (id StreamID) isRW() bool    { return id&rwTag != 0 }
func (id StreamID) index() uint32 { return uint32(id &^ rwTag) }

func rwStreamID(i int) StreamID { return rwTag | StreamID(i) }
func roStreamID(i int) StreamID { return StreamID(i) }

type entry struct {
	s         *stream.Stream
	userID    uint64
	userIndex uint32
	streamTyp uint8
}

// Manager owns every mapped stream under a base path. Its arrays are
// mutated only from the control goroutine, per the concurrency model;
// the mutex exists for metrics/diagnostic readers that run elsewhere.
type Manager struct {
	mu       sync.Mutex
	basePath string
	rw       []entry
	ro       []entry
}

// New creates an empty manager rooted at basePath. Call Scan to adopt
// existing files.
func New(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Scan walks basePath for `*.rwstream` files and one level of
// sub-directories for `*.rostream` files, adopting each one. A file that
// fails to open or whose header looks invalid is skipped, not fatal —
// scan accumulates a multi-error and keeps going.
func (m *Manager) Scan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs cos.Errs

	topEntries, err := godirwalk.ReadDirnames(m.basePath, nil)
	if err != nil {
		return cos.NewIOErr("readdir", m.basePath, err)
	}
	for _, name := range topEntries {
		full := filepath.Join(m.basePath, name)
		fi, statErr := godirwalk.LstatIfPossible(full)
		if statErr != nil {
			errs.Add(statErr)
			continue
		}
		switch {
		case fi.IsDir():
			m.scanSubdir(full, &errs)
		case strings.HasSuffix(name, rwExt):
			s, openErr := stream.OpenRW(full, "")
			if openErr != nil {
				nlog.Warningf("streammgr: skip %s: %v", full, openErr)
				errs.Add(openErr)
				continue
			}
			m.rw = append(m.rw, entry{s: s})
		}
	}
	return errs.Err()
}

func (m *Manager) scanSubdir(dir string, errs *cos.Errs) {
	names, err := godirwalk.ReadDirnames(dir, nil)
	if err != nil {
		errs.Add(err)
		return
	}
	for _, name := range names {
		if !strings.HasSuffix(name, roExt) {
			continue
		}
		full := filepath.Join(dir, name)
		s, openErr := stream.OpenRO(full, "")
		if openErr != nil {
			nlog.Warningf("streammgr: skip %s: %v", full, openErr)
			errs.Add(openErr)
			continue
		}
		m.ro = append(m.ro, entry{s: s})
	}
}

// RegisterNew creates basepath/<name>.rwstream, initializes its header,
// and adopts it into the read-write array.
func (m *Manager) RegisterNew(streamType uint8, name string, userID uint64, fileSize int64, idsCapacity, itemCapacity uint32) (StreamID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userIndex := uint32(1)
	for _, e := range m.rw {
		if e.userID == userID && e.userIndex >= userIndex {
			userIndex = e.userIndex + 1
		}
	}
	for _, e := range m.ro {
		if e.userID == userID && e.userIndex >= userIndex {
			userIndex = e.userIndex + 1
		}
	}

	path := filepath.Join(m.basePath, name+rwExt)
	s, err := stream.Create(path, name, fileSize, idsCapacity, itemCapacity)
	if err != nil {
		return 0, err
	}

	m.rw = append(m.rw, entry{s: s, userID: userID, userIndex: userIndex, streamTyp: streamType})
	return rwStreamID(len(m.rw) - 1), nil
}

// Get resolves a StreamID to its live *stream.Stream, or ok=false for an
// out-of-range or stale handle.
func (m *Manager) Get(id StreamID) (*stream.Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id.isRW() {
		i := id.index()
		if int(i) >= len(m.rw) {
			return nil, false
		}
		return m.rw[i].s, true
	}
	i := id.index()
	if int(i) >= len(m.ro) {
		return nil, false
	}
	return m.ro[i].s, true
}

// UserID reports the owning user-id of a stream_id, for the write
// façade's stream_info operation.
func (m *Manager) UserID(id StreamID) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id.isRW() {
		i := id.index()
		if int(i) >= len(m.rw) {
			return 0, false
		}
		return m.rw[i].userID, true
	}
	return 0, false
}

// Flush syncs every read-write mapping.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs cos.Errs
	for _, e := range m.rw {
		if err := e.s.Flush(); err != nil {
			errs.Add(err)
		}
	}
	return errs.Err()
}

// DiskStats reports free bytes under the base path, a concrete signal
// feeding the grow-by-rotate hook that update() is reserved for (see
// DESIGN.md — rotation itself is not yet implemented).
func (m *Manager) DiskStats() (freeBytes uint64, err error) {
	usage, derr := disk.Usage(m.basePath)
	if derr != nil {
		return 0, cos.NewIOErr("statfs", m.basePath, derr)
	}
	return usage.Free, nil
}

// Update runs periodic maintenance: flush every read-write stream. Grow-
// by-rotate (close + create a successor once a stream approaches
// capacity) is not implemented; DiskStats above gives the rotation
// policy a free-space signal to reason about once it exists.
// TODO: wire a rotation policy once one is specified.
func (m *Manager) Update(_ time.Time) error {
	return m.Flush()
}

// Destroy syncs and closes every stream in insertion order, then frees
// both arrays. Must run after the job manager that might still be
// touching these streams has already stopped.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs cos.Errs
	for _, e := range m.rw {
		if err := e.s.Flush(); err != nil {
			errs.Add(err)
		}
		if err := e.s.Close(); err != nil {
			errs.Add(err)
		}
	}
	for _, e := range m.ro {
		if err := e.s.Close(); err != nil {
			errs.Add(err)
		}
	}
	m.rw = nil
	m.ro = nil
	return errs.Err()
}
