package disk

import (
	"bytes"
	"fmt"
)

// DiskMarker describes how sectors are framed on a nibble track.
type DiskMarker struct {
	Sectors      int
	Codec        NibbleCodec
	AddrProlog   []byte
	AddrEpilog   []byte
	DataProlog   []byte
	DataEpilog   []byte
	CheckAddress bool
}

func (m DiskMarker) String() string {
	return fmt.Sprintf("%d sectors %s addr % X data % X", m.Sectors, m.Codec.Name(), m.AddrProlog, m.DataProlog)
}

var DOS33Marker = DiskMarker{
	Sectors:      STD_SECTORS_PER_TRACK,
	Codec:        Codec62,
	AddrProlog:   []byte{0xD5, 0xAA, 0x96},
	AddrEpilog:   []byte{0xDE, 0xAA, 0xEB},
	DataProlog:   []byte{0xD5, 0xAA, 0xAD},
	DataEpilog:   []byte{0xDE, 0xAA, 0xEB},
	CheckAddress: true,
}

var DOS32Marker = DiskMarker{
	Sectors:      STD_SECTORS_PER_TRACK_OLD,
	Codec:        Codec53,
	AddrProlog:   []byte{0xD5, 0xAA, 0xB5},
	AddrEpilog:   []byte{0xDE, 0xAA, 0xEB},
	DataProlog:   []byte{0xD5, 0xAA, 0xAD},
	DataEpilog:   []byte{0xDE, 0xAA, 0xEB},
	CheckAddress: true,
}

// StandardMarkers are tried, in order, before falling back to the scanner.
var StandardMarkers = []DiskMarker{DOS33Marker, DOS32Marker}

// MarkerFor returns the marker of track t; a single marker applies to every
// track.
func MarkerFor(markers []DiskMarker, t int) DiskMarker {
	if len(markers) == 1 || t >= len(markers) {
		return markers[0]
	}
	return markers[t]
}

const (
	addrFieldSize   = 8
	dataSearchLimit = 100
)

// AddressField is a decoded address field.
type AddressField struct {
	Volume, Track, Sector, Checksum byte
	// Pos is the index of the first prolog nibble.
	Pos int
}

func (a AddressField) Valid() bool {
	return a.Volume^a.Track^a.Sector == a.Checksum
}

func nibbleAt(track []byte, i int) byte {
	n := len(track)
	return track[((i%n)+n)%n]
}

func nibblesAt(track []byte, i, n int) []byte {
	out := make([]byte, n)
	for k := range out {
		out[k] = nibbleAt(track, i+k)
	}
	return out
}

func matchAt(track []byte, i int, pat []byte) bool {
	for k, b := range pat {
		if nibbleAt(track, i+k) != b {
			return false
		}
	}
	return true
}

// Addresses lists every address field on a circular track framed by m.
func Addresses(track []byte, m DiskMarker) []AddressField {
	var out []AddressField
	if len(track) == 0 {
		return out
	}
	pl := len(m.AddrProlog)
	for i := 0; i < len(track); i++ {
		if !matchAt(track, i, m.AddrProlog) {
			continue
		}
		f := nibblesAt(track, i+pl, addrFieldSize)
		a := AddressField{
			Volume:   Decode44(f[0], f[1]),
			Track:    Decode44(f[2], f[3]),
			Sector:   Decode44(f[4], f[5]),
			Checksum: Decode44(f[6], f[7]),
			Pos:      i,
		}
		if m.CheckAddress && !a.Valid() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// dataFieldAt finds the data prolog following the address field at a and
// returns the index of the first data nibble after it.
func dataFieldAt(track []byte, a AddressField, m DiskMarker) (int, bool) {
	start := a.Pos + len(m.AddrProlog) + addrFieldSize
	for k := 0; k < dataSearchLimit; k++ {
		if matchAt(track, start+k, m.DataProlog) {
			return start + k + len(m.DataProlog), true
		}
		// another address field means the data field is missing
		if k > 0 && matchAt(track, start+k, m.AddrProlog) {
			return 0, false
		}
	}
	return 0, false
}

// ReadSectorNibbles locates the sector with the given physical number on
// track t and decodes it.
func ReadSectorNibbles(track []byte, m DiskMarker, t, phys int) ([]byte, error) {
	lastErr := fmt.Errorf("%w: track %d sector %d", ErrSectorNotFound, t, phys)
	for _, a := range Addresses(track, m) {
		if int(a.Track) != t || int(a.Sector) != phys {
			continue
		}
		pos, ok := dataFieldAt(track, a, m)
		if !ok {
			continue
		}
		data, err := m.Codec.Decode(nibblesAt(track, pos, m.Codec.EncodedSize()+1))
		if err == nil {
			return data, nil
		}
		lastErr = fmt.Errorf("track %d sector %d: %w", t, phys, err)
	}
	return nil, lastErr
}

// WriteSectorNibbles re-encodes data over the data field of the given
// sector, modifying track in place.
func WriteSectorNibbles(track []byte, m DiskMarker, t, phys int, data []byte) error {
	raw, err := m.Codec.Encode(data)
	if err != nil {
		return err
	}
	for _, a := range Addresses(track, m) {
		if int(a.Track) != t || int(a.Sector) != phys {
			continue
		}
		pos, ok := dataFieldAt(track, a, m)
		if !ok {
			continue
		}
		n := len(track)
		for k, b := range raw {
			track[((pos+k)%n+n)%n] = b
		}
		return nil
	}
	return fmt.Errorf("%w: track %d sector %d", ErrSectorNotFound, t, phys)
}

// ProbeMarker counts the tracks of img on which m frames at least one
// readable sector belonging to that track.
func ProbeMarker(img TrackImage, m DiskMarker) int {
	good := 0
	for t := 0; t < img.Tracks(); t++ {
		track, err := img.ReadTrack(t)
		if err != nil || len(track) == 0 {
			continue
		}
		for _, a := range Addresses(track, m) {
			if int(a.Track) != t {
				continue
			}
			if _, err := ReadSectorNibbles(track, m, t, int(a.Sector)); err == nil {
				good++
				break
			}
		}
	}
	return good
}

func equalMarker(a, b DiskMarker) bool {
	return a.Sectors == b.Sectors && a.Codec == b.Codec &&
		bytes.Equal(a.AddrProlog, b.AddrProlog) && bytes.Equal(a.DataProlog, b.DataProlog)
}
