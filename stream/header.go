// Package stream implements the on-disk, memory-mapped layout of one
// append-only stream: a fixed header, an ID table, an item-offset table,
// and a packed items region, plus the typed write façade over it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stream

import "encoding/binary"

const (
	nameSize = 64

	// headerSize is the on-disk size of the fixed header: name[64] +
	// time_begin/time_end (u64 each) + ids_count/ids_capacity (u32 each) +
	// item_count/item_capacity (u32 each) + write_cursor (u64).
	headerSize = nameSize + 8 + 8 + 4 + 4 + 4 + 4 + 8

	idEntrySize     = 8
	offsetEntrySize = 4

	// itemRecordOverhead is the 6-byte relative-time + 2-byte id_index
	// prefix of every packed item, before its payload.
	itemRecordOverhead = 8
)

// header mirrors the fixed on-disk prefix of a stream file, little-endian
// throughout. Fields are read and written directly against the mapped
// byte slice; there is no in-memory shadow copy, so every accessor takes
// the backing slice it was mapped from.
type header struct{}

func (header) nameOffset() int       { return 0 }
func (header) timeBeginOffset() int  { return nameSize }
func (header) timeEndOffset() int    { return nameSize + 8 }
func (header) idsCountOffset() int   { return nameSize + 16 }
func (header) idsCapOffset() int     { return nameSize + 20 }
func (header) itemCountOffset() int  { return nameSize + 24 }
func (header) itemCapOffset() int    { return nameSize + 28 }
func (header) writeCursorOffset() int { return nameSize + 32 }

var hdr header

func (s *Stream) name() string {
	b := s.data[hdr.nameOffset() : hdr.nameOffset()+nameSize]
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func (s *Stream) setName(name string) {
	b := s.data[hdr.nameOffset() : hdr.nameOffset()+nameSize]
	for i := range b {
		b[i] = 0
	}
	copy(b, name)
}

func (s *Stream) timeBegin() uint64 {
	return binary.LittleEndian.Uint64(s.data[hdr.timeBeginOffset():])
}
func (s *Stream) setTimeBegin(v uint64) {
	binary.LittleEndian.PutUint64(s.data[hdr.timeBeginOffset():], v)
}

func (s *Stream) timeEnd() uint64 {
	return binary.LittleEndian.Uint64(s.data[hdr.timeEndOffset():])
}
func (s *Stream) setTimeEnd(v uint64) {
	binary.LittleEndian.PutUint64(s.data[hdr.timeEndOffset():], v)
}

func (s *Stream) idsCount() uint32 {
	return binary.LittleEndian.Uint32(s.data[hdr.idsCountOffset():])
}
func (s *Stream) setIDsCount(v uint32) {
	binary.LittleEndian.PutUint32(s.data[hdr.idsCountOffset():], v)
}

func (s *Stream) idsCapacity() uint32 {
	return binary.LittleEndian.Uint32(s.data[hdr.idsCapOffset():])
}
func (s *Stream) setIDsCapacity(v uint32) {
	binary.LittleEndian.PutUint32(s.data[hdr.idsCapOffset():], v)
}

// itemCount is the published count readers rely on: written last, by
// WriteItem's atomic store, after the item body and offset-table entry it
// describes are already visible in the mapping.
func (s *Stream) itemCount() uint32 {
	return binary.LittleEndian.Uint32(s.data[hdr.itemCountOffset():])
}
func (s *Stream) setItemCount(v uint32) {
	binary.LittleEndian.PutUint32(s.data[hdr.itemCountOffset():], v)
}

func (s *Stream) itemCapacity() uint32 {
	return binary.LittleEndian.Uint32(s.data[hdr.itemCapOffset():])
}
func (s *Stream) setItemCapacity(v uint32) {
	binary.LittleEndian.PutUint32(s.data[hdr.itemCapOffset():], v)
}

func (s *Stream) writeCursor() uint64 {
	return binary.LittleEndian.Uint64(s.data[hdr.writeCursorOffset():])
}
func (s *Stream) setWriteCursor(v uint64) {
	binary.LittleEndian.PutUint64(s.data[hdr.writeCursorOffset():], v)
}

func (s *Stream) idTableOffset() int { return headerSize }

func (s *Stream) offsetTableOffset() int {
	return s.idTableOffset() + idEntrySize*int(s.idsCapacity())
}

func (s *Stream) itemsRegionOffset() int {
	return s.offsetTableOffset() + offsetEntrySize*int(s.itemCapacity())
}

func (s *Stream) idAt(i uint32) uint64 {
	off := s.idTableOffset() + idEntrySize*int(i)
	return binary.LittleEndian.Uint64(s.data[off:])
}

func (s *Stream) setIDAt(i uint32, id uint64) {
	off := s.idTableOffset() + idEntrySize*int(i)
	binary.LittleEndian.PutUint64(s.data[off:], id)
}

func (s *Stream) offsetAt(i uint32) uint32 {
	off := s.offsetTableOffset() + offsetEntrySize*int(i)
	return binary.LittleEndian.Uint32(s.data[off:])
}

func (s *Stream) setOffsetAt(i uint32, v uint32) {
	off := s.offsetTableOffset() + offsetEntrySize*int(i)
	binary.LittleEndian.PutUint32(s.data[off:], v)
}
