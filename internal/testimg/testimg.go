// Package testimg builds small synthetic disk images for tests outside the
// disk package.
package testimg

import (
	"bytes"

	"github.com/paleotronic/diskprobe/disk"
)

// DOS33 returns a 140K DOS-ordered image with a valid VTOC and a catalog of
// chain sectors. The first catalog sector holds a file named HELLO.
func DOS33(chain int, volume byte) []byte {
	data := make([]byte, disk.STD_DISK_BYTES)
	sector := func(t, s int) []byte {
		off := (t*disk.STD_SECTORS_PER_TRACK + s) * disk.STD_BYTES_PER_SECTOR
		return data[off : off+disk.STD_BYTES_PER_SECTOR]
	}

	vtoc := sector(disk.DOS_VTOC_TRACK, 0)
	vtoc[1] = disk.DOS_VTOC_TRACK
	vtoc[2] = disk.STD_SECTORS_PER_TRACK - 1
	vtoc[3] = 3
	vtoc[6] = volume
	vtoc[0x27] = disk.DOS_TS_PAIRS
	vtoc[0x34] = disk.STD_TRACKS_PER_DISK
	vtoc[0x35] = disk.STD_SECTORS_PER_TRACK

	for i := 0; i < chain; i++ {
		s := disk.STD_SECTORS_PER_TRACK - 1 - i
		sec := sector(disk.DOS_VTOC_TRACK, s)
		if i < chain-1 {
			sec[1] = disk.DOS_VTOC_TRACK
			sec[2] = byte(s - 1)
		}
		if i == 0 {
			e := sec[disk.DOS_CATALOG_OFFSET:]
			e[0] = 18
			e[2] = 0x04
			copy(e[3:], bytes.Repeat([]byte{0xA0}, 30))
			copy(e[3:], []byte{0xC8, 0xC5, 0xCC, 0xCC, 0xCF})
			e[disk.DOS_ENTRY_SIZE_LO] = 2
		}
	}
	return data
}

// NIB nibblizes a DOS-ordered 140K image with standard framing.
func NIB(dos []byte) []byte {
	nib, err := disk.Nibblize(dos, disk.SectorOrderDOS33, disk.DEFAULT_VOLUME)
	if err != nil {
		panic(err)
	}
	return nib
}
