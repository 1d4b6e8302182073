package disk

import (
	"fmt"
	"io"
)

// Capability flags describe what a ByteSource allows its users to do.
type Capability int

const (
	CapWrite Capability = 1 << iota
	CapRawTrackWrite
)

// sourceState is shared by a source and every window cut from it.
type sourceState struct {
	changed bool
	caps    Capability
}

// ByteSource is an addressable span over a borrowed buffer. Windows share
// the buffer and the changed flag with their parent; nothing is copied.
type ByteSource struct {
	data  []byte
	base  int
	size  int
	state *sourceState
}

// NewByteSource wraps data as a writable source.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{
		data:  data,
		size:  len(data),
		state: &sourceState{caps: CapWrite | CapRawTrackWrite},
	}
}

// NewReadOnlySource wraps data as a source that rejects writes.
func NewReadOnlySource(data []byte) *ByteSource {
	return &ByteSource{
		data:  data,
		size:  len(data),
		state: &sourceState{},
	}
}

func (b *ByteSource) Size() int {
	return b.size
}

func (b *ByteSource) Changed() bool {
	return b.state.changed
}

func (b *ByteSource) ClearChanged() {
	b.state.changed = false
}

func (b *ByteSource) Has(c Capability) bool {
	return b.state.caps&c == c
}

// Bytes returns the window's bytes without copying.
func (b *ByteSource) Bytes() []byte {
	return b.data[b.base : b.base+b.size]
}

func (b *ByteSource) check(off, n int) error {
	if off < 0 || n < 0 || off+n > b.size {
		return fmt.Errorf("%w: range %d+%d outside source of %d bytes", ErrInvalidAddress, off, n, b.size)
	}
	return nil
}

// Read returns a copy of n bytes at off.
func (b *ByteSource) Read(off, n int) ([]byte, error) {
	if err := b.check(off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[b.base+off:])
	return out, nil
}

// ReadAt implements io.ReaderAt so headers can be decoded with
// encoding/binary through an io.SectionReader.
func (b *ByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(b.size) {
		return 0, ErrInvalidAddress
	}
	n := copy(p, b.data[b.base+int(off):b.base+b.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *ByteSource) Write(off int, data []byte) error {
	if !b.Has(CapWrite) {
		return fmt.Errorf("%w: source is read-only", ErrUnsupported)
	}
	if err := b.check(off, len(data)); err != nil {
		return err
	}
	copy(b.data[b.base+off:], data)
	b.state.changed = true
	return nil
}

// Window returns a view of n bytes starting at off.
func (b *ByteSource) Window(off, n int) (*ByteSource, error) {
	if err := b.check(off, n); err != nil {
		return nil, err
	}
	return &ByteSource{
		data:  b.data,
		base:  b.base + off,
		size:  n,
		state: b.state,
	}, nil
}
