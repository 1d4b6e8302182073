package disk

import "fmt"

const (
	aux62Size  = 0x56
	raw62Size  = aux62Size + 256
	sectors62  = 16
	checksum62 = 1
)

var rev62 = [4]byte{0, 2, 1, 3}

type codec62 struct{}

func (codec62) Name() string         { return "6&2" }
func (codec62) SectorsPerTrack() int { return sectors62 }
func (codec62) EncodedSize() int     { return raw62Size }

func (codec62) Verify(raw []byte) bool {
	return verifyChain(raw, raw62Size, &inv62)
}

func (codec62) Decode(raw []byte) ([]byte, error) {
	if len(raw) < raw62Size+checksum62 {
		return nil, fmt.Errorf("%w: 6&2 field is %d nibbles", ErrChecksum, len(raw))
	}

	var buf [raw62Size]byte
	chk, ok := xorChain(raw, raw62Size, &inv62, func(k int, v byte) { buf[k] = v })
	if !ok {
		return nil, fmt.Errorf("%w: invalid 6&2 nibble", ErrChecksum)
	}
	if last := inv62[raw[raw62Size]]; last == invalidNibble || last^chk != 0 {
		return nil, fmt.Errorf("%w: 6&2 data field", ErrChecksum)
	}

	out := make([]byte, 256)
	for i := range out {
		low := (buf[i%aux62Size] >> (2 * (i / aux62Size))) & 3
		out[i] = buf[aux62Size+i]<<2 | rev62[low]
	}
	return out, nil
}

// swap2 exchanges the two low bits of b.
func swap2(b byte) byte {
	return (b&1)<<1 | (b&2)>>1
}

func (codec62) Encode(data []byte) ([]byte, error) {
	if len(data) != 256 {
		return nil, fmt.Errorf("%w: sector is %d bytes", ErrInvalidAddress, len(data))
	}

	var vals [raw62Size]byte
	for j := 0; j < aux62Size; j++ {
		vals[j] = swap2(data[j]) |
			swap2(data[j+aux62Size])<<2 |
			swap2(data[(j+2*aux62Size)&0xff])<<4
	}
	for i := 0; i < 256; i++ {
		vals[aux62Size+i] = data[i] >> 2
	}

	out := make([]byte, 0, raw62Size+checksum62)
	var last byte
	for _, v := range vals {
		out = append(out, NIBBLE_62[v^last])
		last = v
	}
	out = append(out, NIBBLE_62[last])
	return out, nil
}
