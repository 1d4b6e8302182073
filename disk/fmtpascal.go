package disk

import "strings"

const PASCAL_VOLUME_BLOCK = 2
const PASCAL_MAX_VOLUME_NAME = 7
const PASCAL_BAD_NAME_CHARS = "$=?,[#:"

// IsPascal checks the Apple Pascal volume header in block 2 and returns the
// volume name.
func IsPascal(bd BlockDevice) (bool, string) {
	data, err := bd.ReadBlock(PASCAL_VOLUME_BLOCK)
	if err != nil {
		return false, ""
	}

	if !(data[0x00] == 0 && data[0x01] == 0) ||
		!(data[0x04] == 0 && data[0x05] == 0) ||
		!(data[0x06] > 0 && data[0x06] <= PASCAL_MAX_VOLUME_NAME) {
		return false, ""
	}

	total := int(data[0x0E]) + 256*int(data[0x0F])
	if total < PASCAL_VOLUME_BLOCK+4 || total > bd.Blocks() {
		return false, ""
	}

	l := int(data[0x06])
	name := data[0x07 : 0x07+l]

	str := ""
	for _, ch := range name {
		if ch < 0x20 || ch >= 0x7f {
			return false, ""
		}
		if strings.ContainsRune(PASCAL_BAD_NAME_CHARS, rune(ch)) {
			return false, ""
		}
		str += string(rune(ch))
	}

	return true, str
}

type pascalFactory struct {
	opts Options
}

func (f *pascalFactory) Name() string { return "pascal" }

func (f *pascalFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Blocks == nil {
			continue
		}
		if ok, name := IsPascal(c.Blocks); ok {
			hits = append(hits, &FormattedDisk{
				Format:     GetDiskFormat(DF_PASCAL),
				Order:      c.Order,
				VolumeName: name + ":",
				Chain:      1,
				Sectors:    c.Sectors,
				Blocks:     c.Blocks,
			})
		}
	}
	return pickBest(hits, f.opts)
}
