package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

/*
	2MG format loader...
*/

const PREAMBLE_2MG_SIZE = 0x40

var MAGIC_2MG = []byte{byte('2'), byte('I'), byte('M'), byte('G')}

const (
	FLAG_2MG_LOCKED     = 0x80000000
	FLAG_2MG_VOLUME_SET = 0x00000100 // bit 8 of the flags word, not 0x10
	FLAG_2MG_VOLUME     = 0x000000FF
)

// ImageFormat2MG is the payload ordering declared by a 2IMG header.
type ImageFormat2MG uint32

const (
	Format2MGDOS ImageFormat2MG = iota
	Format2MGProDOS
	Format2MGNibble
)

func (f ImageFormat2MG) String() string {
	switch f {
	case Format2MGDOS:
		return "DOS"
	case Format2MGProDOS:
		return "ProDOS"
	case Format2MGNibble:
		return "Nibble"
	}
	return fmt.Sprintf("Unknown(%d)", uint32(f))
}

// Header2MG is the on-disk 2IMG preamble, little-endian.
type Header2MG struct {
	Magic             [4]byte
	Creator           [4]byte
	HeaderSize        uint16
	Version           uint16
	ImageFormat       uint32
	Flags             uint32
	ProDOSBlocks      uint32
	DataOffset        uint32
	DataLength        uint32
	CommentOffset     uint32
	CommentLength     uint32
	CreatorDataOffset uint32
	CreatorDataLength uint32
	Reserved          [16]byte
}

func (h *Header2MG) IsLocked() bool {
	return h.Flags&FLAG_2MG_LOCKED != 0
}

// GetVolume returns the DOS volume number and whether the header sets one.
func (h *Header2MG) GetVolume() (int, bool) {
	if h.Flags&FLAG_2MG_VOLUME_SET == 0 {
		return DEFAULT_VOLUME, false
	}
	return int(h.Flags & FLAG_2MG_VOLUME), true
}

// Info2MG is the metadata kept from a 2IMG container.
type Info2MG struct {
	Creator     string
	Version     int
	Format      ImageFormat2MG
	Blocks      int
	DataOffset  int
	DataLength  int
	Comment     string
	CreatorData []byte
	Locked      bool
	Volume      int
	VolumeSet   bool
}

func Is2MG(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], MAGIC_2MG)
}

// Open2MG parses the 2IMG header of src and returns its metadata along with
// a window over the payload.
func Open2MG(src *ByteSource) (*Info2MG, *ByteSource, error) {
	var h Header2MG
	if err := binary.Read(io.NewSectionReader(src, 0, int64(src.Size())), binary.LittleEndian, &h); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read 2IMG header: %v", ErrContainer, err)
	}

	if !bytes.Equal(h.Magic[:], MAGIC_2MG) {
		return nil, nil, fmt.Errorf("%w: bad 2IMG magic", ErrContainer)
	}
	if h.HeaderSize != PREAMBLE_2MG_SIZE {
		return nil, nil, fmt.Errorf("%w: 2IMG header size %d", ErrContainer, h.HeaderSize)
	}
	if h.Version > 1 {
		return nil, nil, fmt.Errorf("%w: 2IMG version %d", ErrContainer, h.Version)
	}

	format := ImageFormat2MG(h.ImageFormat)
	if format > Format2MGNibble {
		return nil, nil, fmt.Errorf("%w: 2IMG image format %d", ErrContainer, h.ImageFormat)
	}

	length := int(h.DataLength)
	if length == 0 && format == Format2MGProDOS {
		length = int(h.ProDOSBlocks) * PRODOS_BLOCK_SIZE
	}
	offset := int(h.DataOffset)
	if offset < PREAMBLE_2MG_SIZE || offset+length > src.Size() {
		return nil, nil, fmt.Errorf("%w: 2IMG payload %d+%d exceeds %d bytes", ErrContainer, offset, length, src.Size())
	}

	info := &Info2MG{
		Creator:    string(h.Creator[:]),
		Version:    int(h.Version),
		Format:     format,
		Blocks:     int(h.ProDOSBlocks),
		DataOffset: offset,
		DataLength: length,
		Locked:     h.IsLocked(),
	}
	info.Volume, info.VolumeSet = h.GetVolume()

	if c, err := src.Read(int(h.CommentOffset), int(h.CommentLength)); err == nil && h.CommentLength > 0 {
		info.Comment = string(c)
	}
	if c, err := src.Read(int(h.CreatorDataOffset), int(h.CreatorDataLength)); err == nil && h.CreatorDataLength > 0 {
		info.CreatorData = c
	}

	payload, err := src.Window(offset, length)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrContainer, err)
	}
	return info, payload, nil
}
