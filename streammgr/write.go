package streammgr

import (
	"github.com/jkluft/conartist/cmn/cos"
	"github.com/jkluft/conartist/cmn/debug"
	"github.com/jkluft/conartist/stream"
)

// WriteFixed is the manager's typed write entry point: it asserts the
// stream index is in range and the mode is read-write, checks
// payload_size against itemSize for fixed streams, then delegates to the
// stream package's own 6-byte relative-time item record. Earlier source
// variants of this wrapper encoded their own 5-byte relative time
// directly; we don't carry that forward; §3's 6-byte record is the only
// on-disk encoding.
func (m *Manager) WriteFixed(id StreamID, timeMS uint64, userid uint64, data []byte, itemSize int) error {
	s, ok := m.Get(id)
	if !ok {
		return cos.ErrInvalidArgument
	}
	debug.Assertf(s.Mode() == stream.ReadWrite, "streammgr: write to read-only stream %v", id)
	if itemSize > 0 && len(data) > itemSize {
		return cos.ErrInvalidArgument
	}
	return stream.WriteData(s, userid, timeMS, data, itemSize)
}
