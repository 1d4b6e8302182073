package disk

// NibbleCodec converts between the nibbles of a data field and a 256 byte
// sector. Raw input to Decode and Verify is EncodedSize()+1 nibbles, the
// last one being the checksum.
type NibbleCodec interface {
	Name() string
	SectorsPerTrack() int
	EncodedSize() int
	Decode(raw []byte) ([]byte, error)
	Encode(data []byte) ([]byte, error)
	Verify(raw []byte) bool
}

var (
	Codec53 NibbleCodec = codec53{}
	Codec62 NibbleCodec = codec62{}
)

// Decode44 decodes an odd-even encoded address field byte.
func Decode44(b1, b2 byte) byte {
	return ((b1 << 1) | 1) & b2
}

// Encode44 produces the odd-even pair written for v in address fields.
func Encode44(v byte) [2]byte {
	return [2]byte{(v >> 1) | 0xAA, v | 0xAA}
}

func is44(b byte) bool {
	return b&0xAA == 0xAA
}

// xorChain de-translates n nibbles, storing the running value of each step
// through put. It returns the running checksum and false on an invalid nibble.
func xorChain(raw []byte, n int, inv *[256]byte, put func(k int, v byte)) (byte, bool) {
	var chk byte
	for k := 0; k < n; k++ {
		v := inv[raw[k]]
		if v == invalidNibble {
			return 0, false
		}
		chk ^= v
		if put != nil {
			put(k, chk)
		}
	}
	return chk, true
}

// verifyChain runs the checksum pass of a codec without assembling output.
func verifyChain(raw []byte, n int, inv *[256]byte) bool {
	if len(raw) < n+1 {
		return false
	}
	chk, ok := xorChain(raw, n, inv, nil)
	if !ok {
		return false
	}
	last := inv[raw[n]]
	return last != invalidNibble && last^chk == 0
}
