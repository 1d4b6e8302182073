package disk

const (
	NAKEDOS_CATALOG_TRACK = 0
	NAKEDOS_RESERVED      = 0xFE
	NAKEDOS_LAST_RESERVED = 0x0B
	NAKEDOS_MAP_ENTRIES   = STD_TRACKS_PER_DISK * STD_SECTORS_PER_TRACK
)

// NakedOS numbers sectors physically; its catalog lives in sectors 9 to 11
// of track 0.
var NAKEDOS_CATALOG_SECTORS = []int{9, 10, 11}

// checkNakedOS validates the sector allocation map that makes up the
// NakedOS catalog: one byte per sector on the disk, the first twelve owned
// by the system.
func checkNakedOS(ts TrackSectorDevice) bool {
	var cat []byte
	for _, phys := range NAKEDOS_CATALOG_SECTORS {
		sec, err := ts.ReadSector(NAKEDOS_CATALOG_TRACK, DOS_33_SECTOR_ORDER[phys])
		if err != nil {
			return false
		}
		cat = append(cat, sec...)
	}
	for i := 0; i < NAKEDOS_MAP_ENTRIES; i++ {
		switch {
		case cat[i] == 0x00:
			return false
		case i <= NAKEDOS_LAST_RESERVED && cat[i] != NAKEDOS_RESERVED:
			return false
		case i > NAKEDOS_LAST_RESERVED && cat[i] == NAKEDOS_RESERVED:
			return false
		}
	}
	return true
}

type nakedOSFactory struct {
	opts Options
}

func (f *nakedOSFactory) Name() string { return "nakedos" }

func (f *nakedOSFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Sectors == nil || c.Sectors.Tracks() != STD_TRACKS_PER_DISK ||
			c.Sectors.SectorsPerTrack() != STD_SECTORS_PER_TRACK {
			continue
		}
		if !checkNakedOS(c.Sectors) {
			continue
		}
		hits = append(hits, &FormattedDisk{
			Format:  GetDiskFormat(DF_NAKEDOS),
			Order:   c.Order,
			Chain:   1,
			Sectors: c.Sectors,
			Blocks:  c.Blocks,
		})
	}
	return pickBest(hits, f.opts)
}
