package disk

import (
	"fmt"
	"math/bits"

	"github.com/paleotronic/diskprobe/loggy"
)

// Scanner thresholds, tuned against real protected disk dumps.
const (
	SCAN_MIN_TRACKS     = 5
	SCAN_SYNC_WINDOW    = 40
	SCAN_MIN_SYNC_RUN   = 4
	SCAN_ADDRESS_SKIP   = 3 + addrFieldSize + 2
	SCAN_MIN_13_SECTORS = 10
	SCAN_MAX_13_SECTORS = 13
	SCAN_MIN_16_SECTORS = 14
	SCAN_MAX_16_SECTORS = 16
)

type prologGroup struct {
	prolog  [3]byte
	sectors uint16
	at      []int
}

// ScanTrack discovers the framing of a single track. It always returns a
// marker; ok is false when no data prolog could be established, in which
// case the marker is the 13-sector default.
func ScanTrack(track []byte, t int) (DiskMarker, bool) {
	def := DOS32Marker
	def.CheckAddress = false
	if len(track) < 2*SCAN_SYNC_WINDOW {
		return def, false
	}

	var groups []*prologGroup
	index := map[[3]byte]*prologGroup{}
	for i := 0; i < len(track); i++ {
		b0, b1 := nibbleAt(track, i), nibbleAt(track, i+1)
		b2, b3 := nibbleAt(track, i+2), nibbleAt(track, i+3)
		if !is44(b0) || !is44(b1) || !is44(b2) || !is44(b3) {
			continue
		}
		if int(Decode44(b0, b1)) != t {
			continue
		}
		sec := Decode44(b2, b3)
		if sec >= 16 {
			continue
		}
		// volume precedes track; the prolog precedes the volume
		start := i - 5
		var p [3]byte
		copy(p[:], nibblesAt(track, start, 3))
		g, ok := index[p]
		if !ok {
			g = &prologGroup{prolog: p}
			index[p] = g
			groups = append(groups, g)
		}
		g.sectors |= 1 << sec
		g.at = append(g.at, start)
	}

	var best *prologGroup
	for _, g := range groups {
		if best == nil || bits.OnesCount16(g.sectors) > bits.OnesCount16(best.sectors) {
			best = g
		}
	}
	if best == nil {
		return def, false
	}

	var m DiskMarker
	switch n := bits.OnesCount16(best.sectors); {
	case n >= SCAN_MIN_13_SECTORS && n <= SCAN_MAX_13_SECTORS:
		m = DOS32Marker
	case n >= SCAN_MIN_16_SECTORS && n <= SCAN_MAX_16_SECTORS:
		m = DOS33Marker
	default:
		return def, false
	}
	m.CheckAddress = false
	m.AddrProlog = append([]byte(nil), best.prolog[:]...)

	for _, p := range best.at {
		m.AddrEpilog = nibblesAt(track, p+3+addrFieldSize, 2)
		if q, ok := findDataProlog(track, p+SCAN_ADDRESS_SKIP, m.Codec); ok {
			m.DataProlog = nibblesAt(track, q-3, 3)
			m.DataEpilog = nibblesAt(track, q+m.Codec.EncodedSize()+1, 2)
			return m, true
		}
	}
	return def, false
}

// findDataProlog looks for a run of sync bytes within the window starting
// at from, followed by three prolog bytes and a field that passes the
// codec's checksum. It returns the index of the first data nibble.
func findDataProlog(track []byte, from int, codec NibbleCodec) (int, bool) {
	run := 0
	var prev byte
	for k := 0; k < SCAN_SYNC_WINDOW; k++ {
		b := nibbleAt(track, from+k)
		if k > 0 && b == prev {
			run++
			continue
		}
		if run >= SCAN_MIN_SYNC_RUN {
			q := from + k + 3
			if codec.Verify(nibblesAt(track, q, codec.EncodedSize()+1)) {
				return q, true
			}
		}
		prev = b
		run = 1
	}
	return 0, false
}

// Scan discovers per-track markers for a non-standard disk. It fails with
// ErrFramingNotFound unless more than SCAN_MIN_TRACKS tracks were framed.
func Scan(img TrackImage) ([]DiskMarker, error) {
	markers := make([]DiskMarker, img.Tracks())
	good := 0
	for t := range markers {
		track, err := img.ReadTrack(t)
		if err != nil {
			return nil, err
		}
		m, ok := ScanTrack(track, t)
		markers[t] = m
		if ok {
			good++
		} else {
			loggy.Get(0).Debugf("scan: no framing on track %d", t)
		}
	}
	if good <= SCAN_MIN_TRACKS {
		return nil, fmt.Errorf("%w: %d of %d tracks framed", ErrFramingNotFound, good, len(markers))
	}
	return markers, nil
}
