package stream

import (
	"sync/atomic"

	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/debug"
)

// Item is one decoded record returned by an iterator.
type Item struct {
	Time uint64
	ID   uint64
	Data []byte
}

// Iterator is a snapshot reader: it captures write_cursor and item_count
// at construction, so concurrent appends to the stream never change what
// an already-open iterator can see.
type Iterator struct {
	s        *Stream
	cursor   uint64
	maxIndex uint32
	closed   bool
}

// NewIterator captures the stream's current cursor and item count. The
// stream tracks live iterators and refuses Close while any remain.
func (s *Stream) NewIterator() *Iterator {
	s.mu.Lock()
	cursor := s.writeCursor()
	maxIndex := s.itemCount()
	s.mu.Unlock()

	atomic.AddInt32(&s.liveIters, 1)
	return &Iterator{s: s, cursor: cursor, maxIndex: maxIndex}
}

// Destroy releases the iterator's hold on its stream. Safe to call more
// than once.
func (it *Iterator) Destroy() {
	if it.closed {
		return
	}
	it.closed = true
	atomic.AddInt32(&it.s.liveIters, -1)
}

// Len is the number of items visible to this snapshot.
func (it *Iterator) Len() int { return int(it.maxIndex) }

// GetItem decodes the record at relative_index, per §4.5: the payload
// size of the last visible item is derived from the snapshot's own
// write_cursor rather than the offset table's next entry (which may not
// exist, or may belong to a record appended after this snapshot).
func (it *Iterator) GetItem(relativeIndex int) (Item, error) {
	if relativeIndex < 0 || uint32(relativeIndex) >= it.maxIndex {
		return Item{}, cos.ErrInvalidArgument
	}
	s := it.s
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := uint32(relativeIndex)
	off := s.offsetAt(idx)

	var size uint32
	if idx+1 < it.maxIndex {
		size = s.offsetAt(idx+1) - off - itemRecordOverhead
	} else {
		size = uint32(it.cursor) - off - itemRecordOverhead
	}

	rec := s.data[off : off+itemRecordOverhead+size]
	rel := readRelativeTime(rec)
	idIndex := uint16(rec[6])<<8 | uint16(rec[7])
	debug.Assert(int(idIndex) < int(s.idsCount()), "id_index out of range")

	item := Item{
		Time: s.timeBegin() + rel,
		ID:   s.idAt(uint32(idIndex)),
		Data: append([]byte(nil), rec[itemRecordOverhead:]...),
	}
	return item, nil
}
