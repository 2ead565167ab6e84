package stream

import (
	"encoding/binary"
	"math"

	"github.com/jkluft/conartist/cmn/cos"
)

// WriteData is the façade's general entry point: fixed/variable-size
// payload streams alike. itemSize is the stream's configured fixed item
// size (0 for variable streams, where no bound is enforced here).
func WriteData(s *Stream, id uint64, timeMS uint64, data []byte, itemSize int) error {
	if itemSize > 0 && len(data) > itemSize {
		return cos.ErrInvalidArgument
	}
	return s.WriteItem(timeMS, id, data)
}

// WriteU8/U16/U32/F32 are thin typed dispatchers over WriteItem for
// fixed-scalar streams. f32 is bit-reinterpreted as u32 before emission,
// little-endian throughout.

func WriteU8(s *Stream, id uint64, timeMS uint64, v uint8) error {
	return s.WriteItem(timeMS, id, []byte{v})
}

func WriteU16(s *Stream, id uint64, timeMS uint64, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return s.WriteItem(timeMS, id, b[:])
}

func WriteU32(s *Stream, id uint64, timeMS uint64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.WriteItem(timeMS, id, b[:])
}

func WriteF32(s *Stream, id uint64, timeMS uint64, v float32) error {
	return WriteU32(s, id, timeMS, math.Float32bits(v))
}

// StreamTime returns (time_begin, time_end) for the stream identified by
// the façade's caller-side stream_id resolution; it simply forwards to
// the stream itself, since stream_id → *Stream lookup belongs to the
// stream manager (C6), not this façade.
func StreamTime(s *Stream) (begin, end uint64) { return s.TimeRange() }
