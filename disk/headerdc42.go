package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

const PREAMBLE_DC42_SIZE = 0x54
const DC42_MAGIC = 0x0100
const DC42_TAG_CHECKSUM_SKIP = 12
const DC42_NAME_SIZE = 64

// HeaderDC42 is the DiskCopy 4.2 preamble, big-endian.
type HeaderDC42 struct {
	Name         [64]byte
	DataSize     uint32
	TagSize      uint32
	DataChecksum uint32
	TagChecksum  uint32
	DiskFormat   uint8
	FormatByte   uint8
	Private      uint16
}

func (h *HeaderDC42) GetName() string {
	l := int(h.Name[0])
	if l > len(h.Name)-1 {
		l = len(h.Name) - 1
	}
	return string(h.Name[1 : 1+l])
}

// InfoDC42 is the metadata kept from a DiskCopy container.
type InfoDC42 struct {
	Name         string
	DataSize     int
	TagSize      int
	DataChecksum uint32
	TagChecksum  uint32
	DiskFormat   int
	FormatByte   int
	DataValid    bool
	TagValid     bool
}

func (i *InfoDC42) DiskFormatName() string {
	switch i.DiskFormat {
	case 0:
		return "400K GCR"
	case 1:
		return "800K GCR"
	case 2:
		return "720K MFM"
	case 3:
		return "1440K MFM"
	}
	return "Unknown"
}

// ChecksumDC42 is the DiskCopy rolling checksum: add each big-endian word,
// then rotate right by one.
func ChecksumDC42(data []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
		sum = bits.RotateLeft32(sum, -1)
	}
	return sum
}

// IsDC42 is a cheap test for a DiskCopy header: a Pascal name length that
// fits the name field and the private magic word. Empty names are allowed.
func IsDC42(data []byte) bool {
	if len(data) < PREAMBLE_DC42_SIZE {
		return false
	}
	return data[0] < DC42_NAME_SIZE && binary.BigEndian.Uint16(data[0x52:]) == DC42_MAGIC
}

// OpenDC42 parses a DiskCopy 4.2 header and returns a window over the data
// fork of the image.
func OpenDC42(src *ByteSource) (*InfoDC42, *ByteSource, error) {
	var h HeaderDC42
	if err := binary.Read(io.NewSectionReader(src, 0, int64(src.Size())), binary.BigEndian, &h); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read DiskCopy header: %v", ErrContainer, err)
	}
	if h.Private != DC42_MAGIC {
		return nil, nil, fmt.Errorf("%w: bad DiskCopy magic %04x", ErrContainer, h.Private)
	}
	if h.Name[0] >= DC42_NAME_SIZE {
		return nil, nil, fmt.Errorf("%w: DiskCopy name length %d", ErrContainer, h.Name[0])
	}

	dataSize := int(h.DataSize)
	tagSize := int(h.TagSize)
	if PREAMBLE_DC42_SIZE+dataSize+tagSize > src.Size() {
		return nil, nil, fmt.Errorf("%w: DiskCopy payload %d+%d exceeds %d bytes", ErrContainer, dataSize, tagSize, src.Size())
	}

	payload, err := src.Window(PREAMBLE_DC42_SIZE, dataSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrContainer, err)
	}

	info := &InfoDC42{
		Name:         h.GetName(),
		DataSize:     dataSize,
		TagSize:      tagSize,
		DataChecksum: h.DataChecksum,
		TagChecksum:  h.TagChecksum,
		DiskFormat:   int(h.DiskFormat),
		FormatByte:   int(h.FormatByte),
	}
	info.DataValid = ChecksumDC42(payload.Bytes()) == h.DataChecksum
	if tagSize > DC42_TAG_CHECKSUM_SKIP {
		tags, _ := src.Read(PREAMBLE_DC42_SIZE+dataSize+DC42_TAG_CHECKSUM_SKIP, tagSize-DC42_TAG_CHECKSUM_SKIP)
		info.TagValid = ChecksumDC42(tags) == h.TagChecksum
	} else {
		info.TagValid = h.TagChecksum == 0
	}

	return info, payload, nil
}
