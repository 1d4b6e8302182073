package disk

import "bytes"

const RDOS_SIGNATURE_TRACK = 0
const RDOS_SIGNATURE_SECTOR = 1

var RDOS_SIGNATURE_32 = []byte{
	byte('R' + 0x80),
	byte('D' + 0x80),
	byte('O' + 0x80),
	byte('S' + 0x80),
	byte(' ' + 0x80),
	byte('2' + 0x80),
}

var RDOS_SIGNATURE_33 = []byte{
	byte('R' + 0x80),
	byte('D' + 0x80),
	byte('O' + 0x80),
	byte('S' + 0x80),
	byte(' ' + 0x80),
	byte('3' + 0x80),
}

// IsRDOS identifies SSI's RDOS from the signature at the start of track 0
// sector 1. The variant depends on the signature and the sector count.
func IsRDOS(ts TrackSectorDevice) (bool, DiskFormatID) {
	data, err := ts.ReadSector(RDOS_SIGNATURE_TRACK, RDOS_SIGNATURE_SECTOR)
	if err != nil {
		return false, DF_NONE
	}
	spt := ts.SectorsPerTrack()
	id := data[:len(RDOS_SIGNATURE_32)]

	switch {
	case bytes.Equal(id, RDOS_SIGNATURE_32) && spt == STD_SECTORS_PER_TRACK_OLD:
		return true, DF_RDOS_32
	case bytes.Equal(id, RDOS_SIGNATURE_32) && spt == STD_SECTORS_PER_TRACK:
		return true, DF_RDOS_3
	case bytes.Equal(id, RDOS_SIGNATURE_33) && spt == STD_SECTORS_PER_TRACK:
		return true, DF_RDOS_33
	}
	return false, DF_NONE
}

type rdosFactory struct {
	opts Options
}

func (f *rdosFactory) Name() string { return "rdos" }

func (f *rdosFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Sectors == nil || c.Sectors.Tracks() != STD_TRACKS_PER_DISK {
			continue
		}
		if ok, id := IsRDOS(c.Sectors); ok {
			hits = append(hits, &FormattedDisk{
				Format:  GetDiskFormat(id),
				Order:   c.Order,
				Chain:   1,
				Sectors: c.Sectors,
				Blocks:  c.Blocks,
			})
		}
	}
	return pickBest(hits, f.opts)
}
