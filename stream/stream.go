package stream

import (
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"golang.org/x/sys/unix"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/debug"
)

// Mode distinguishes a stream opened for append from one opened purely
// for historical reads.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Stream is one memory-mapped append-only file: header, ID table, offset
// table, and packed items, all addressed directly against the mapping.
// A Stream has exactly one writer (the caller holding it in ReadWrite
// mode); readers attach independent iterators.
type Stream struct {
	mu      sync.Mutex
	path    string
	mode    Mode
	data    []byte
	f       *os.File
	full    bool
	liveIters int32

	// idFilter prunes find_or_add_id's linear scan of the ID table: a
	// negative hit skips the scan outright. It is rebuilt from the ID
	// table on open and kept in lockstep with setIDAt on append.
	idFilter *cuckoo.Filter
}

// Create pre-allocates a new stream file at path, zeroes its header,
// and initializes capacities. maxFileSize bounds the whole file;
// idsCapacity and itemCapacity bound the two TOC arrays.
func Create(path, name string, maxFileSize int64, idsCapacity, itemCapacity uint32) (*Stream, error) {
	if len(name) >= nameSize {
		return nil, cos.ErrInvalidArgument
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, cos.NewIOErr("create", path, err)
	}
	if err := f.Truncate(maxFileSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, cos.NewIOErr("truncate", path, err)
	}
	s, err := mapFile(f, path, ReadWrite, int(maxFileSize))
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	s.setName(name)
	s.setIDsCapacity(idsCapacity)
	s.setItemCapacity(itemCapacity)
	s.setWriteCursor(uint64(s.itemsRegionOffset()))
	s.idFilter = cuckoo.NewFilter(uint(nextPow2(idsCapacity)))

	return s, nil
}

// OpenRW maps an existing read-write stream file, rejecting a file too
// short for the header or whose header counts, table sizes or write
// cursor do not fit the file, validating its name matches expectName
// (when non-empty) and rebuilding the ID filter.
func OpenRW(path, expectName string) (*Stream, error) {
	return open(path, expectName, ReadWrite)
}

// OpenRO maps an existing stream file read-only.
func OpenRO(path, expectName string) (*Stream, error) {
	return open(path, expectName, ReadOnly)
}

func open(path, expectName string, mode Mode) (*Stream, error) {
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, cos.NewIOErr("open", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, cos.NewIOErr("stat", path, err)
	}
	if fi.Size() < headerSize {
		f.Close()
		return nil, cos.ErrInvalidArgument
	}
	s, err := mapFile(f, path, mode, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	if s.idsCount() > s.idsCapacity() || s.itemCount() > s.itemCapacity() ||
		s.itemsRegionOffset() > len(s.data) || s.writeCursor() > uint64(len(s.data)) ||
		s.writeCursor() < uint64(s.itemsRegionOffset()) {
		s.unmapLocked()
		return nil, cos.ErrInvalidArgument
	}
	if expectName != "" && s.name() != expectName {
		s.unmapLocked()
		return nil, cos.ErrInvalidArgument
	}
	s.rebuildFilter()
	return s, nil
}

func mapFile(f *os.File, path string, mode Mode, size int) (*Stream, error) {
	prot := unix.PROT_READ
	if mode == ReadWrite {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, cos.NewIOErr("mmap", path, err)
	}
	return &Stream{path: path, mode: mode, data: data, f: f}, nil
}

func (s *Stream) rebuildFilter() {
	n := s.idsCount()
	s.idFilter = cuckoo.NewFilter(uint(nextPow2(s.idsCapacity())))
	for i := uint32(0); i < n; i++ {
		s.idFilter.InsertUnique(idKey(s.idAt(i)))
	}
}

func nextPow2(n uint32) uint32 {
	if n < 1 {
		return 1
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func idKey(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

// Full reports whether the last append failed because the file or the
// item table is exhausted.
func (s *Stream) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

func (s *Stream) Path() string { return s.path }
func (s *Stream) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name()
}

func (s *Stream) Mode() Mode { return s.mode }

// TimeRange returns (time_begin, time_end) as published by the writer.
func (s *Stream) TimeRange() (begin, end uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeBegin(), s.timeEnd()
}

// ItemCount is the published, reader-visible item count, loaded with
// acquire semantics to pair with WriteItem's release-store.
func (s *Stream) ItemCount() int {
	return int(atomic.LoadUint32(itemCountPtr(s)))
}

// findOrAddID resolves id to its 16-bit table index, inserting it if
// absent and room remains. The cuckoo filter prunes a definite-absent
// check before the table's own linear scan; a filter hit still requires
// verification against the authoritative table; a filter result is never
// trusted as a positive.
func (s *Stream) findOrAddID(id uint64) (uint16, bool) {
	n := s.idsCount()
	if s.idFilter == nil || s.idFilter.Lookup(idKey(id)) {
		for i := uint32(0); i < n; i++ {
			if s.idAt(i) == id {
				return uint16(i), true
			}
		}
	}
	if n >= s.idsCapacity() {
		return 0, false
	}
	s.setIDAt(n, id)
	s.setIDsCount(n + 1)
	if s.idFilter != nil {
		s.idFilter.InsertUnique(idKey(id))
	}
	return uint16(n), true
}

// WriteItem appends one record: relative_time(6 bytes) + id_index(2
// bytes, big-endian) + payload. It publishes item_count last, after the
// record body and offset-table entry are both written, so a reader that
// observes the new count sees a fully-formed record.
func (s *Stream) WriteItem(timeMS uint64, id uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Assertf(s.mode == ReadWrite, "%s: write to read-only stream", s.path)

	cursor := s.writeCursor()
	recSize := itemRecordOverhead + len(payload)
	fileSize := len(s.data)
	if int(cursor)+recSize > fileSize {
		s.full = true
		s.setWriteCursor(uint64(fileSize))
		return cos.ErrCapacityExceeded
	}
	count := s.itemCount()
	if count >= s.itemCapacity() {
		s.full = true
		s.setWriteCursor(uint64(fileSize))
		return cos.ErrCapacityExceeded
	}

	if count == 0 {
		s.setTimeBegin(timeMS)
	}
	idIndex, ok := s.findOrAddID(id)
	if !ok {
		return cos.ErrNotFound
	}

	rel := timeMS - s.timeBegin()
	writeRelativeTime(s.data[cursor:], rel)
	binary.BigEndian.PutUint16(s.data[cursor+6:], idIndex)
	copy(s.data[int(cursor)+itemRecordOverhead:], payload)

	s.setOffsetAt(count, uint32(cursor))

	newEnd := s.timeEnd()
	if timeMS > newEnd {
		newEnd = timeMS
	}
	s.setTimeEnd(newEnd)
	s.setWriteCursor(cursor + uint64(recSize))
	// item_count is the release-visible publish point: everything above
	// must already be in the mapping before a reader can observe it.
	atomic.StoreUint32(itemCountPtr(s), count+1)

	return nil
}

// itemCountPtr exposes the header's item_count field as a *uint32 so the
// publish step can use atomic.StoreUint32/LoadUint32 for release/acquire
// ordering, matching §4.5's requirement that readers observing a new
// count see the record it describes. The offset is a compile-time
// multiple of 4, so the mapped byte is always suitably aligned.
func itemCountPtr(s *Stream) *uint32 {
	return (*uint32)(unsafe.Pointer(&s.data[hdr.itemCountOffset()]))
}

// writeRelativeTime packs rel into 6 little-endian bytes (supports
// roughly 34 years at millisecond resolution).
func writeRelativeTime(b []byte, rel uint64) {
	b[0] = byte(rel)
	b[1] = byte(rel >> 8)
	b[2] = byte(rel >> 16)
	b[3] = byte(rel >> 24)
	b[4] = byte(rel >> 32)
	b[5] = byte(rel >> 40)
}

func readRelativeTime(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 |
		uint64(b[3])<<24 | uint64(b[4])<<32 | uint64(b[5])<<40
}

// Flush syncs the mapping to disk.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return cos.NewIOErr("msync", s.path, err)
	}
	return nil
}

// Close fails if live iterators remain (checked always; §4.5/§8 treat
// this as an invariant violation, not merely a debug assertion).
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if atomic.LoadInt32(&s.liveIters) != 0 {
		debug.Assertf(false, "%s: close with %d live iterators", s.path, s.liveIters)
		return cos.ErrInvariantViolated
	}
	return s.unmapLocked()
}

func (s *Stream) unmapLocked() error {
	var errs cos.Errs
	if err := unix.Munmap(s.data); err != nil {
		errs.Add(cos.NewIOErr("munmap", s.path, err))
	}
	if err := s.f.Close(); err != nil {
		errs.Add(cos.NewIOErr("close", s.path, err))
	}
	s.data = nil
	return errs.Err()
}
