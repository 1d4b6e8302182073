package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build2MG(t *testing.T, h Header2MG, payload []byte, comment string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	buf.Write(payload)
	buf.WriteString(comment)
	return buf.Bytes()
}

func new2MGHeader(format ImageFormat2MG, n int) Header2MG {
	h := Header2MG{
		HeaderSize:  PREAMBLE_2MG_SIZE,
		Version:     1,
		ImageFormat: uint32(format),
		DataOffset:  PREAMBLE_2MG_SIZE,
		DataLength:  uint32(n),
	}
	copy(h.Magic[:], MAGIC_2MG)
	copy(h.Creator[:], "TEST")
	return h
}

func TestOpen2MG(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, STD_DISK_BYTES)
	h := new2MGHeader(Format2MGDOS, len(payload))
	h.Flags = FLAG_2MG_LOCKED | FLAG_2MG_VOLUME_SET | 0x2A
	h.CommentOffset = uint32(PREAMBLE_2MG_SIZE + len(payload))
	h.CommentLength = 5
	data := build2MG(t, h, payload, "hello")

	info, win, err := Open2MG(NewByteSource(data))
	require.NoError(t, err)
	assert.Equal(t, "TEST", info.Creator)
	assert.Equal(t, Format2MGDOS, info.Format)
	assert.True(t, info.Locked)
	assert.True(t, info.VolumeSet)
	assert.Equal(t, 0x2A, info.Volume)
	assert.Equal(t, "hello", info.Comment)
	assert.Equal(t, STD_DISK_BYTES, win.Size())

	// the window shares the buffer of the container
	require.NoError(t, win.Write(0, []byte{0x01}))
	assert.Equal(t, byte(0x01), data[PREAMBLE_2MG_SIZE])
	assert.True(t, win.Changed())
}

func TestOpen2MGProDOSLengthFromBlocks(t *testing.T) {
	payload := make([]byte, PRODOS_800KB_DISK_BYTES)
	h := new2MGHeader(Format2MGProDOS, 0)
	h.ProDOSBlocks = PRODOS_800KB_BLOCKS
	info, win, err := Open2MG(NewByteSource(build2MG(t, h, payload, "")))
	require.NoError(t, err)
	assert.Equal(t, PRODOS_800KB_DISK_BYTES, info.DataLength)
	assert.Equal(t, PRODOS_800KB_DISK_BYTES, win.Size())
	_, set := (&h).GetVolume()
	assert.False(t, set)
}

func TestHeader2MGVolumeFlag(t *testing.T) {
	h := new2MGHeader(Format2MGDOS, STD_DISK_BYTES)
	h.Flags = 0x10
	_, set := h.GetVolume()
	assert.False(t, set, "0x10 is not the volume flag")

	h.Flags = 0x100 | 0xFE
	vol, set := h.GetVolume()
	assert.True(t, set)
	assert.Equal(t, 0xFE, vol)
}

func TestOpen2MGErrors(t *testing.T) {
	good := new2MGHeader(Format2MGDOS, 256)

	tests := []struct {
		name   string
		mutate func(h *Header2MG)
	}{
		{"header size", func(h *Header2MG) { h.HeaderSize = 0x34 }},
		{"version", func(h *Header2MG) { h.Version = 2 }},
		{"format", func(h *Header2MG) { h.ImageFormat = 7 }},
		{"overrun", func(h *Header2MG) { h.DataLength = 4096 }},
		{"offset", func(h *Header2MG) { h.DataOffset = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := good
			tt.mutate(&h)
			_, _, err := Open2MG(NewByteSource(build2MG(t, h, make([]byte, 256), "")))
			assert.True(t, errors.Is(err, ErrContainer), "got %v", err)
		})
	}

	_, _, err := Open2MG(NewByteSource([]byte("2IMG")))
	assert.True(t, errors.Is(err, ErrContainer))
}

func buildDC42(t *testing.T, name string, payload []byte) []byte {
	t.Helper()
	h := HeaderDC42{
		DataSize:     uint32(len(payload)),
		DataChecksum: ChecksumDC42(payload),
		DiskFormat:   1,
		FormatByte:   0x24,
		Private:      DC42_MAGIC,
	}
	h.Name[0] = byte(len(name))
	copy(h.Name[1:], name)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, &h))
	buf.Write(payload)
	return buf.Bytes()
}

func TestOpenDC42(t *testing.T) {
	payload := make([]byte, PRODOS_800KB_DISK_BYTES)
	payload[1025] = 0x77
	data := buildDC42(t, "Games Disk", payload)
	require.True(t, IsDC42(data))

	info, win, err := OpenDC42(NewByteSource(data))
	require.NoError(t, err)
	assert.Equal(t, "Games Disk", info.Name)
	assert.True(t, info.DataValid)
	assert.True(t, info.TagValid)
	assert.Equal(t, "800K GCR", info.DiskFormatName())
	assert.Equal(t, PRODOS_800KB_DISK_BYTES, win.Size())

	data[PREAMBLE_DC42_SIZE] ^= 0xFF
	info, _, err = OpenDC42(NewByteSource(data))
	require.NoError(t, err)
	assert.False(t, info.DataValid)
}

func TestOpenDC42EmptyName(t *testing.T) {
	data := buildDC42(t, "", make([]byte, PRODOS_800KB_DISK_BYTES))
	require.True(t, IsDC42(data))

	img, err := Open("untitled.dsk", data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerDC42, img.Container)
	require.NotNil(t, img.InfoDC42)
	assert.Empty(t, img.InfoDC42.Name)

	data[0] = DC42_NAME_SIZE
	assert.False(t, IsDC42(data))
}

func TestOpenDC42Truncated(t *testing.T) {
	data := buildDC42(t, "x", make([]byte, 1024))
	_, _, err := OpenDC42(NewByteSource(data[:600]))
	assert.True(t, errors.Is(err, ErrContainer))
}

func TestChecksumDC42(t *testing.T) {
	// one word: add then rotate right
	assert.Equal(t, uint32(0x80000000), ChecksumDC42([]byte{0x00, 0x01}))
	assert.Equal(t, uint32(0x40000000|0x1), ChecksumDC42([]byte{0x00, 0x01, 0x00, 0x02}))
}
