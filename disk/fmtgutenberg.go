package disk

import "strings"

const (
	GUTENBERG_CATALOG_TRACK  = 17
	GUTENBERG_CATALOG_SECTOR = 7
	GUTENBERG_RECORD         = 16
	GUTENBERG_NAME_LENGTH    = 12
	GUTENBERG_CR             = 0x8D
	GUTENBERG_SPACE          = 0xA0
)

func gutenbergLinkOK(t, s byte) bool {
	return int(t&0x3F) < STD_TRACKS_PER_DISK && int(s) < STD_SECTORS_PER_TRACK
}

func highASCII(b []byte) bool {
	for _, c := range b {
		if c < GUTENBERG_SPACE {
			return false
		}
	}
	return true
}

// checkGutenberg validates the catalog sector of a Gutenberg word processor
// disk: sixteen 16-byte records each ending in a carriage return. The first
// record is the header holding the previous, next and current catalog links
// and the volume name.
func checkGutenberg(ts TrackSectorDevice) (int, string, bool) {
	sec, err := ts.ReadSector(GUTENBERG_CATALOG_TRACK, GUTENBERG_CATALOG_SECTOR)
	if err != nil {
		return 0, "", false
	}
	for i := GUTENBERG_RECORD - 1; i < len(sec); i += GUTENBERG_RECORD {
		if sec[i] != GUTENBERG_CR {
			return 0, "", false
		}
	}

	for i := 0; i < 6; i += 2 {
		if !gutenbergLinkOK(sec[i], sec[i+1]) {
			return 0, "", false
		}
	}
	name := sec[6:15]
	if !highASCII(name) {
		return 0, "", false
	}

	used := 0
	for r := 1; r < len(sec)/GUTENBERG_RECORD; r++ {
		e := sec[r*GUTENBERG_RECORD : (r+1)*GUTENBERG_RECORD]
		fname := e[:GUTENBERG_NAME_LENGTH]
		if !highASCII(fname) {
			return 0, "", false
		}
		if isAll(fname, GUTENBERG_SPACE) {
			continue
		}
		if !gutenbergLinkOK(e[12], e[13]) {
			return 0, "", false
		}
		used++
	}

	return used + 1, strings.TrimSpace(stripHigh(name)), true
}

func isAll(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}

func stripHigh(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c & 0x7F
	}
	return string(out)
}

type gutenbergFactory struct {
	opts Options
}

func (f *gutenbergFactory) Name() string { return "gutenberg" }

func (f *gutenbergFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Sectors == nil || c.Sectors.Tracks() != STD_TRACKS_PER_DISK ||
			c.Sectors.SectorsPerTrack() != STD_SECTORS_PER_TRACK {
			continue
		}
		chain, name, ok := checkGutenberg(c.Sectors)
		if !ok {
			continue
		}
		hits = append(hits, &FormattedDisk{
			Format:     GetDiskFormat(DF_GUTENBERG),
			Order:      c.Order,
			VolumeName: name,
			Chain:      chain,
			Sectors:    c.Sectors,
			Blocks:     c.Blocks,
		})
	}
	return pickBest(hits, f.opts)
}
