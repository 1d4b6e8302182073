package disk

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// formatDOS writes a VTOC and a catalog chain of n sectors, starting at the
// last sector of track 17 and counting down. The first catalog sector holds
// one file entry.
func formatDOS(t *testing.T, ts TrackSectorDevice, n int) {
	t.Helper()
	spt := ts.SectorsPerTrack()

	vtoc := make([]byte, 256)
	vtoc[1] = DOS_VTOC_TRACK
	vtoc[2] = byte(spt - 1)
	vtoc[3] = 3
	vtoc[6] = DEFAULT_VOLUME
	vtoc[0x27] = DOS_TS_PAIRS
	vtoc[0x34] = byte(ts.Tracks())
	vtoc[0x35] = byte(spt)
	require.NoError(t, ts.WriteSector(DOS_VTOC_TRACK, 0, vtoc))

	for i := 0; i < n; i++ {
		s := spt - 1 - i
		sec := make([]byte, 256)
		if i < n-1 {
			sec[1] = DOS_VTOC_TRACK
			sec[2] = byte(s - 1)
		}
		if i == 0 {
			e := sec[DOS_CATALOG_OFFSET:]
			e[0] = 18
			e[1] = 0
			e[2] = 0x04
			copy(e[3:], bytes.Repeat([]byte{0xA0}, 30))
			copy(e[3:], []byte{0xC8, 0xC5, 0xCC, 0xCC, 0xCF})
			e[DOS_ENTRY_SIZE_LO] = 2
		}
		require.NoError(t, ts.WriteSector(DOS_VTOC_TRACK, s, sec))
	}
}

func newDOSImage(t *testing.T, chain int) []byte {
	t.Helper()
	data := make([]byte, STD_DISK_BYTES)
	ts, err := NewSectorImage(NewByteSource(data), SectorOrderDOS33, STD_SECTORS_PER_TRACK)
	require.NoError(t, err)
	formatDOS(t, ts, chain)
	return data
}

// formatProDOS writes a volume directory of dirBlocks blocks starting at
// block 2.
func formatProDOS(t *testing.T, bd BlockDevice, name string, dirBlocks int) {
	t.Helper()
	for i := 0; i < dirBlocks; i++ {
		blk := make([]byte, PRODOS_BLOCK_SIZE)
		n := PRODOS_VOLUME_BLOCK + i
		if i > 0 {
			binary.LittleEndian.PutUint16(blk[0:], uint16(n-1))
		}
		if i < dirBlocks-1 {
			binary.LittleEndian.PutUint16(blk[2:], uint16(n+1))
		}
		if i == 0 {
			blk[4] = PRODOS_STORAGE_VOL<<4 | byte(len(name))
			copy(blk[5:], name)
			blk[0x23] = PRODOS_ENTRY_SIZE
			blk[0x24] = PRODOS_ENTRIES_PER_BLOCK
			binary.LittleEndian.PutUint16(blk[0x29:], uint16(bd.Blocks()))
		}
		require.NoError(t, bd.WriteBlock(n, blk))
	}
}

func newProDOSImage(t *testing.T, dirBlocks int) []byte {
	t.Helper()
	data := make([]byte, STD_DISK_BYTES)
	ts, err := NewSectorImage(NewByteSource(data), SectorOrderProDOS, STD_SECTORS_PER_TRACK)
	require.NoError(t, err)
	bd, err := NewSectorBlocks(ts)
	require.NoError(t, err)
	formatProDOS(t, bd, "GAMES", dirBlocks)
	return data
}

func newWideImage(t *testing.T, layout WideLayout, volumes ...int) []byte {
	t.Helper()
	data := make([]byte, PRODOS_800KB_DISK_BYTES)
	bd, err := NewLinearBlocks(NewByteSource(data))
	require.NoError(t, err)
	for _, v := range volumes {
		wv, err := NewWideVolume(bd, layout, v)
		require.NoError(t, err)
		formatDOS(t, wv, 3+v)
	}
	return data
}

// buildTrack lays out one nibble track with the given marker. Data fields
// come from encode, which lets tests write 5&3 fields.
func buildTrack(t int, m DiskMarker, sectors [][]byte, encode func([]byte) []byte, length int) []byte {
	var out bytes.Buffer
	for phys, data := range sectors {
		writeSyncBytes(&out, NIB_GAP1)
		writeAddressBlock(&out, m, t, phys, DEFAULT_VOLUME)
		writeSyncBytes(&out, NIB_GAP2)
		out.Write(m.DataProlog)
		out.Write(encode(data))
		out.Write(m.DataEpilog)
		writeSyncBytes(&out, NIB_GAP3)
	}
	for out.Len() < length {
		out.WriteByte(NIB_SYNC_BYTE)
	}
	return out.Bytes()[:length]
}

func encode62(data []byte) []byte {
	raw, _ := Codec62.Encode(data)
	return raw
}

// buildNib nibblizes a DOS-ordered 140K image with a custom marker.
func buildNib(t *testing.T, data []byte, m DiskMarker) []byte {
	t.Helper()
	var out []byte
	for tr := 0; tr < STD_TRACKS_PER_DISK; tr++ {
		secs := make([][]byte, STD_SECTORS_PER_TRACK)
		for phys := range secs {
			off := (tr*STD_SECTORS_PER_TRACK + DOS_33_SECTOR_ORDER[phys]) * STD_BYTES_PER_SECTOR
			secs[phys] = data[off : off+STD_BYTES_PER_SECTOR]
		}
		out = append(out, buildTrack(tr, m, secs, encode62, TRACK_NIBBLE_LENGTH)...)
	}
	return out
}

// nibblesToBits packs nibbles back into a WOZ bitstream with no extra sync
// bits.
func nibblesToBits(track []byte) ([]byte, int) {
	return append([]byte(nil), track...), len(track) * 8
}

func wozChunk(id string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	binary.Write(&b, binary.LittleEndian, uint32(len(body)))
	b.Write(body)
	return b.Bytes()
}

func wozInfo(version, diskType int) []byte {
	info := make([]byte, 60)
	info[0] = byte(version)
	info[1] = byte(diskType)
	copy(info[5:37], bytes.Repeat([]byte{' '}, 32))
	copy(info[5:], "diskprobe tests")
	return info
}

// buildWoz2 lays out a WOZ2 file: INFO at 12, TMAP at 80, TRKS at 248 with
// its entry table ending at 1536, the first bitstream block.
func buildWoz2(tracks [][]byte, tmap []byte, diskType int, meta string) []byte {
	var head bytes.Buffer
	head.WriteString("WOZ2")
	binary.Write(&head, binary.LittleEndian, uint32(WOZ_SENTINEL))
	binary.Write(&head, binary.LittleEndian, uint32(0))
	head.Write(wozChunk("INFO", wozInfo(2, diskType)))
	head.Write(wozChunk("TMAP", tmap))

	entries := make([]byte, WOZ_TMAP_SIZE*WOZ2_TRK_ENTRY)
	var bits bytes.Buffer
	block := 3
	for i, tr := range tracks {
		data, n := nibblesToBits(tr)
		blocks := (len(data) + WOZ_BLOCK_SIZE - 1) / WOZ_BLOCK_SIZE
		e := entries[i*WOZ2_TRK_ENTRY:]
		binary.LittleEndian.PutUint16(e, uint16(block))
		binary.LittleEndian.PutUint16(e[2:], uint16(blocks))
		binary.LittleEndian.PutUint32(e[4:], uint32(n))
		padded := make([]byte, blocks*WOZ_BLOCK_SIZE)
		copy(padded, data)
		bits.Write(padded)
		block += blocks
	}
	trks := append(entries, bits.Bytes()...)
	head.Write(wozChunk("TRKS", trks))
	if meta != "" {
		head.Write(wozChunk("META", []byte(meta)))
	}
	return head.Bytes()
}

func fullTmap(n int) []byte {
	tmap := bytes.Repeat([]byte{WOZ_NO_TRACK}, WOZ_TMAP_SIZE)
	for t := 0; t < n; t++ {
		tmap[t*WOZ_QUARTER_STEPS] = byte(t)
	}
	return tmap
}
