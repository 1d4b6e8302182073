package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRaw(t *testing.T) {
	img, err := Open("games.dsk", newDOSImage(t, 3), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerRaw, img.Container)
	assert.Equal(t, STD_DISK_BYTES, img.Size)
	assert.Len(t, img.SHA256, 64)
	require.Len(t, img.Candidates, 2)
	assert.Equal(t, SectorOrderDOS33, img.Candidates[0].Order)
	assert.Equal(t, SectorOrderProDOS, img.Candidates[1].Order)
	assert.True(t, img.Recognized())
	assert.NoError(t, img.Err())

	img, err = Open("games.po", newDOSImage(t, 3), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, SectorOrderProDOS, img.Candidates[0].Order)
}

func TestOpenOrderFromExtension(t *testing.T) {
	// a one sector catalog reads the same in DOS and ProDOS order
	tests := []struct {
		name string
		pref []SectorOrder
		want SectorOrder
	}{
		{"tie.dsk", nil, SectorOrderDOS33},
		{"tie.po", nil, SectorOrderProDOS},
		{"tie.do", nil, SectorOrderDOS33},
		{"tie.dsk", []SectorOrder{SectorOrderProDOS, SectorOrderDOS33}, SectorOrderProDOS},
		{"tie.do", []SectorOrder{SectorOrderProDOS, SectorOrderDOS33}, SectorOrderDOS33},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		if tt.pref != nil {
			opts.OrderPreference = tt.pref
		}
		before := append([]SectorOrder(nil), opts.OrderPreference...)

		img, err := Open(tt.name, newDOSImage(t, 1), opts)
		require.NoError(t, err)
		require.Len(t, img.Disks, 1, tt.name)
		assert.Equal(t, DF_DOS_SECTORS_16, img.Disks[0].Format.ID)
		assert.Equal(t, tt.want, img.Disks[0].Order, "%s %v", tt.name, tt.pref)
		assert.Equal(t, before, opts.OrderPreference, "caller options untouched")
	}
}

func TestOpenUnrecognized(t *testing.T) {
	img, err := Open("blank.dsk", make([]byte, STD_DISK_BYTES), DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, img.Candidates, 2)
	assert.False(t, img.Recognized())
	assert.ErrorIs(t, img.Err(), ErrNotRecognized)
	assert.NotNil(t, img.SectorDevice())
	assert.NotNil(t, img.BlockDevice())

	img, err = Open("odd.bin", make([]byte, 1000), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, img.Candidates)
	assert.Nil(t, img.SectorDevice())
	assert.Nil(t, img.BlockDevice())
	assert.ErrorIs(t, img.Err(), ErrNotRecognized)
}

func TestOpen2MGContainer(t *testing.T) {
	payload := newDOSImage(t, 3)
	data := build2MG(t, new2MGHeader(Format2MGDOS, len(payload)), payload, "")

	img, err := Open("games.2mg", data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Container2MG, img.Container)
	require.NotNil(t, img.Info2MG)
	require.Len(t, img.Candidates, 1)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, DF_DOS_SECTORS_16, img.Disks[0].Format.ID)

	// writes go through to the container buffer
	ts := img.SectorDevice()
	sec := make([]byte, STD_BYTES_PER_SECTOR)
	sec[0] = 0xEE
	require.NoError(t, ts.WriteSector(1, 0, sec))
	assert.Equal(t, byte(0xEE), data[PREAMBLE_2MG_SIZE+STD_SECTORS_PER_TRACK*STD_BYTES_PER_SECTOR])
	assert.True(t, img.Changed())
}

func TestOpen2MGLocked(t *testing.T) {
	payload := newDOSImage(t, 3)
	h := new2MGHeader(Format2MGDOS, len(payload))
	h.Flags = FLAG_2MG_LOCKED
	img, err := Open("locked.2mg", build2MG(t, h, payload, ""), DefaultOptions())
	require.NoError(t, err)
	require.True(t, img.Recognized())

	err = img.SectorDevice().WriteSector(0, 0, make([]byte, STD_BYTES_PER_SECTOR))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, img.Changed())
}

func TestOpen2MGProDOS800K(t *testing.T) {
	payload := make([]byte, PRODOS_800KB_DISK_BYTES)
	bd, err := NewLinearBlocks(NewByteSource(payload))
	require.NoError(t, err)
	formatProDOS(t, bd, "HARDDISK", 1)

	img, err := Open("big.2mg", build2MG(t, new2MGHeader(Format2MGProDOS, len(payload)), payload, ""), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, DF_PRODOS_800KB, img.Disks[0].Format.ID)
	assert.Equal(t, "/HARDDISK", img.Disks[0].VolumeName)
}

func TestOpen2MGNibble(t *testing.T) {
	nib, err := Nibblize(newDOSImage(t, 3), SectorOrderDOS33, DEFAULT_VOLUME)
	require.NoError(t, err)

	img, err := Open("games.2mg", build2MG(t, new2MGHeader(Format2MGNibble, len(nib)), nib, ""), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Container2MG, img.Container)
	require.NotNil(t, img.Tracks)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, SectorOrderNibble, img.Disks[0].Order)
}

func TestOpenNib(t *testing.T) {
	data := newDOSImage(t, 3)
	nib, err := Nibblize(data, SectorOrderDOS33, DEFAULT_VOLUME)
	require.NoError(t, err)

	img, err := Open("games.nib", nib, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerNib, img.Container)
	assert.False(t, img.Scanned)
	require.Len(t, img.Markers, 1)
	assert.True(t, equalMarker(DOS33Marker, img.Markers[0]))
	require.Len(t, img.Disks, 1)
	d := img.Disks[0]
	assert.Equal(t, DF_DOS_SECTORS_16, d.Format.ID)
	assert.Equal(t, SectorOrderNibble, d.Order)
	assert.Equal(t, 3, d.Chain)
	require.NotNil(t, d.Blocks)

	// the nibble device writes back into the image
	sec := sampleSector(7)
	require.NoError(t, d.Sectors.WriteSector(20, 3, sec))
	assert.True(t, img.Changed())
	again, err := Open("games.nib", img.Payload.Bytes(), DefaultOptions())
	require.NoError(t, err)
	got, err := again.SectorDevice().ReadSector(20, 3)
	require.NoError(t, err)
	assert.Equal(t, sec, got)
}

func TestOpenProtectedNib(t *testing.T) {
	nib := buildNib(t, newDOSImage(t, 3), protectedMarker)

	img, err := Open("protected.nib", nib, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, img.Scanned)
	assert.Len(t, img.Markers, STD_TRACKS_PER_DISK)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, DF_DOS_SECTORS_16, img.Disks[0].Format.ID)

	opts := DefaultOptions()
	opts.ScanProtected = false
	img, err = Open("protected.nib", nib, opts)
	require.NoError(t, err)
	assert.False(t, img.Scanned)
	assert.Empty(t, img.Markers)
	assert.Empty(t, img.Candidates)
	assert.ErrorIs(t, img.Err(), ErrNotRecognized)
}

func TestOpenWozImage(t *testing.T) {
	nib, err := Nibblize(newProDOSImage(t, 2), SectorOrderProDOS, DEFAULT_VOLUME)
	require.NoError(t, err)
	tracks := make([][]byte, STD_TRACKS_PER_DISK)
	for i := range tracks {
		tracks[i] = nib[i*TRACK_NIBBLE_LENGTH : (i+1)*TRACK_NIBBLE_LENGTH]
	}

	img, err := Open("games.woz", buildWoz2(tracks, fullTmap(len(tracks)), WOZ_DISK_525, ""), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerWoz, img.Container)
	require.NotNil(t, img.Woz)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, DF_PRODOS, img.Disks[0].Format.ID)
	assert.Equal(t, "/GAMES", img.Disks[0].VolumeName)

	img, err = Open("unidisk.woz", buildWoz2([][]byte{{0xFF}}, fullTmap(1), WOZ_DISK_35, ""), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, img.Candidates)
}

func TestOpenDC42Image(t *testing.T) {
	payload := make([]byte, PRODOS_800KB_DISK_BYTES)
	bd, err := NewLinearBlocks(NewByteSource(payload))
	require.NoError(t, err)
	formatProDOS(t, bd, "SYSTEM", 3)

	img, err := Open("system.image", buildDC42(t, "System", payload), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerDC42, img.Container)
	require.NotNil(t, img.InfoDC42)
	require.Len(t, img.Disks, 1)
	assert.Equal(t, "/SYSTEM", img.Disks[0].VolumeName)
}

func TestOpenDC42Fallback(t *testing.T) {
	// a raw image that happens to look like a DiskCopy header
	data := newDOSImage(t, 3)
	data[0] = 5
	data[0x52], data[0x53] = 0x01, 0x00
	data[0x40] = 0xFF
	require.True(t, IsDC42(data))

	img, err := Open("games.dsk", data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ContainerRaw, img.Container)
	assert.Nil(t, img.InfoDC42)
	assert.True(t, img.Recognized())

	_, err = Open("games.dc", data, DefaultOptions())
	assert.ErrorIs(t, err, ErrContainer)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.do")
	require.NoError(t, os.WriteFile(path, newDOSImage(t, 3), 0o644))

	img, err := OpenFile(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "disk.do", img.Filename)
	assert.True(t, img.Recognized())

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.dsk"), DefaultOptions())
	assert.Error(t, err)
}
