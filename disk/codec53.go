package disk

import "fmt"

const (
	chunk53    = 51
	threes53   = 3*chunk53 + 1
	raw53Size  = threes53 + 256
	sectors53  = 13
	checksum53 = 1
)

type codec53 struct{}

func (codec53) Name() string         { return "5&3" }
func (codec53) SectorsPerTrack() int { return sectors53 }
func (codec53) EncodedSize() int     { return raw53Size }

func (codec53) Verify(raw []byte) bool {
	return verifyChain(raw, raw53Size, &inv53)
}

// Decode reassembles a 13-sector data field. The "threes" region is
// written to disk highest index first, followed by the 256 top-five-bit
// values.
func (codec53) Decode(raw []byte) ([]byte, error) {
	if len(raw) < raw53Size+checksum53 {
		return nil, fmt.Errorf("%w: 5&3 field is %d nibbles", ErrChecksum, len(raw))
	}

	var threes [threes53]byte
	var base [256]byte
	chk, ok := xorChain(raw, raw53Size, &inv53, func(k int, v byte) {
		if k < threes53 {
			threes[threes53-1-k] = v
		} else {
			base[k-threes53] = v << 3
		}
	})
	if !ok {
		return nil, fmt.Errorf("%w: invalid 5&3 nibble", ErrChecksum)
	}
	if last := inv53[raw[raw53Size]]; last == invalidNibble || last^chk != 0 {
		return nil, fmt.Errorf("%w: 5&3 data field", ErrChecksum)
	}

	out := make([]byte, 0, 256)
	for i := chunk53 - 1; i >= 0; i-- {
		t1 := threes[i]
		t2 := threes[chunk53+i]
		t3 := threes[2*chunk53+i]
		t4 := (t1&2)<<1 | (t2 & 2) | (t3&2)>>1
		t5 := (t1&1)<<2 | (t2&1)<<1 | (t3 & 1)
		out = append(out,
			base[i]|(t1>>2)&7,
			base[chunk53+i]|(t2>>2)&7,
			base[2*chunk53+i]|(t3>>2)&7,
			base[3*chunk53+i]|t4&7,
			base[4*chunk53+i]|t5&7,
		)
	}
	out = append(out, base[255]|threes[3*chunk53]&7)
	return out, nil
}

func (codec53) Encode(data []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: 5&3 encode", ErrUnsupported)
}
