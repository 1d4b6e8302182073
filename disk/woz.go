package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	WOZ_HEADER_SIZE   = 12
	WOZ_SENTINEL      = 0x0A0D0AFF
	WOZ_TMAP_SIZE     = 160
	WOZ_NO_TRACK      = 0xFF
	WOZ_BLOCK_SIZE    = 512
	WOZ1_TRACK_SLOT   = 6656
	WOZ1_BYTES_USED   = 6646
	WOZ1_BIT_COUNT    = 6648
	WOZ2_TRK_ENTRY    = 8
	WOZ_DISK_525      = 1
	WOZ_DISK_35       = 2
	WOZ_QUARTER_STEPS = 4
)

var (
	wozMagic1 = binary.LittleEndian.Uint32([]byte("WOZ1"))
	wozMagic2 = binary.LittleEndian.Uint32([]byte("WOZ2"))
)

type wozHeader struct {
	Magic    uint32
	Sentinel uint32
	CRC      uint32
}

// WozInfo carries the INFO chunk. Fields after Creator are WOZ2 only.
type WozInfo struct {
	Version        int
	DiskType       int
	WriteProtected bool
	Synchronized   bool
	Cleaned        bool
	Creator        string
	Sides          int
	BootFormat     int
	BitTiming      int
	Hardware       int
	RequiredRAM    int
	LargestTrack   int
}

type wozTrack struct {
	data []byte
	bits int
}

// WozImage decodes WOZ1 and WOZ2 bitstream images into byte aligned nibble
// tracks. WOZ images are never written.
type WozImage struct {
	Version int
	Info    WozInfo
	Meta    map[string]string
	tmap    []byte
	tracks  []wozTrack
	count   int
}

// IsWoz reports whether data carries a WOZ1 or WOZ2 signature.
func IsWoz(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	m := binary.LittleEndian.Uint32(data)
	return (m == wozMagic1 || m == wozMagic2) && binary.LittleEndian.Uint32(data[4:]) == WOZ_SENTINEL
}

func OpenWoz(src *ByteSource) (*WozImage, error) {
	var h wozHeader
	if err := binary.Read(io.NewSectionReader(src, 0, int64(src.Size())), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: failed to read WOZ header: %v", ErrContainer, err)
	}

	w := &WozImage{Meta: map[string]string{}}
	switch h.Magic {
	case wozMagic1:
		w.Version = 1
	case wozMagic2:
		w.Version = 2
	default:
		return nil, fmt.Errorf("%w: bad WOZ magic", ErrContainer)
	}
	if h.Sentinel != WOZ_SENTINEL {
		return nil, fmt.Errorf("%w: bad WOZ sentinel %08x", ErrContainer, h.Sentinel)
	}

	data := src.Bytes()
	var info, trks []byte
	for off := WOZ_HEADER_SIZE; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("%w: WOZ chunk %q overruns image", ErrContainer, id)
		}
		chunk := data[body : body+size]
		switch id {
		case "INFO":
			info = chunk
		case "TMAP":
			w.tmap = chunk
		case "TRKS":
			trks = chunk
		case "META":
			w.parseMeta(chunk)
		}
		off = body + size
	}

	if info == nil || w.tmap == nil || trks == nil {
		return nil, fmt.Errorf("%w: WOZ image missing INFO, TMAP or TRKS", ErrContainer)
	}
	if len(w.tmap) < WOZ_TMAP_SIZE {
		return nil, fmt.Errorf("%w: WOZ TMAP is %d bytes", ErrContainer, len(w.tmap))
	}
	if err := w.parseInfo(info); err != nil {
		return nil, err
	}

	var err error
	if w.Version == 1 {
		err = w.parseTracks1(trks)
	} else {
		err = w.parseTracks2(trks, data)
	}
	if err != nil {
		return nil, err
	}

	w.count = w.trimmedTracks()
	return w, nil
}

func (w *WozImage) parseInfo(b []byte) error {
	if len(b) < 37 {
		return fmt.Errorf("%w: WOZ INFO is %d bytes", ErrContainer, len(b))
	}
	w.Info = WozInfo{
		Version:        int(b[0]),
		DiskType:       int(b[1]),
		WriteProtected: b[2] == 1,
		Synchronized:   b[3] == 1,
		Cleaned:        b[4] == 1,
		Creator:        strings.TrimRight(string(b[5:37]), " \x00"),
	}
	if w.Version == 2 && len(b) >= 46 {
		w.Info.Sides = int(b[37])
		w.Info.BootFormat = int(b[38])
		w.Info.BitTiming = int(b[39])
		w.Info.Hardware = int(binary.LittleEndian.Uint16(b[40:]))
		w.Info.RequiredRAM = int(binary.LittleEndian.Uint16(b[42:]))
		w.Info.LargestTrack = int(binary.LittleEndian.Uint16(b[44:]))
	}
	if w.Info.DiskType != WOZ_DISK_525 && w.Info.DiskType != WOZ_DISK_35 {
		return fmt.Errorf("%w: WOZ disk type %d", ErrContainer, w.Info.DiskType)
	}
	return nil
}

func (w *WozImage) parseMeta(b []byte) {
	for _, line := range strings.Split(string(b), "\n") {
		k, v, ok := strings.Cut(line, "\t")
		if ok && k != "" {
			w.Meta[k] = v
		}
	}
}

func (w *WozImage) parseTracks1(b []byte) error {
	n := len(b) / WOZ1_TRACK_SLOT
	w.tracks = make([]wozTrack, n)
	for i := 0; i < n; i++ {
		slot := b[i*WOZ1_TRACK_SLOT : (i+1)*WOZ1_TRACK_SLOT]
		used := int(binary.LittleEndian.Uint16(slot[WOZ1_BYTES_USED:]))
		bits := int(binary.LittleEndian.Uint16(slot[WOZ1_BIT_COUNT:]))
		if used > WOZ1_BYTES_USED || bits > used*8 {
			return fmt.Errorf("%w: WOZ1 track %d claims %d bytes", ErrContainer, i, used)
		}
		w.tracks[i] = wozTrack{data: slot[:used], bits: bits}
	}
	return nil
}

func (w *WozImage) parseTracks2(b []byte, file []byte) error {
	if len(b) < WOZ_TMAP_SIZE*WOZ2_TRK_ENTRY {
		return fmt.Errorf("%w: WOZ2 TRKS is %d bytes", ErrContainer, len(b))
	}
	w.tracks = make([]wozTrack, WOZ_TMAP_SIZE)
	for i := range w.tracks {
		e := b[i*WOZ2_TRK_ENTRY:]
		start := int(binary.LittleEndian.Uint16(e)) * WOZ_BLOCK_SIZE
		length := int(binary.LittleEndian.Uint16(e[2:])) * WOZ_BLOCK_SIZE
		bits := int(binary.LittleEndian.Uint32(e[4:]))
		if length == 0 {
			continue
		}
		if start+length > len(file) || bits > length*8 {
			return fmt.Errorf("%w: WOZ2 track %d overruns image", ErrContainer, i)
		}
		w.tracks[i] = wozTrack{data: file[start : start+length], bits: bits}
	}
	return nil
}

func (w *WozImage) recordSize() int {
	if w.Info.DiskType == WOZ_DISK_525 {
		return WOZ_QUARTER_STEPS
	}
	return 1
}

// trimmedTracks counts TMAP records up to the last one holding any track.
func (w *WozImage) trimmedTracks() int {
	step := w.recordSize()
	records := WOZ_TMAP_SIZE / step
	for records > 0 {
		rec := w.tmap[(records-1)*step : records*step]
		if !bytes.Equal(rec, bytes.Repeat([]byte{WOZ_NO_TRACK}, step)) {
			break
		}
		records--
	}
	return records
}

func (w *WozImage) Tracks() int {
	return w.count
}

func (w *WozImage) ReadTrack(t int) ([]byte, error) {
	if t < 0 || t >= w.count {
		return nil, fmt.Errorf("%w: track %d", ErrInvalidAddress, t)
	}
	idx := w.tmap[t*w.recordSize()]
	if idx == WOZ_NO_TRACK || int(idx) >= len(w.tracks) {
		return []byte{}, nil
	}
	tr := w.tracks[idx]
	return BitsToNibbles(tr.data, tr.bits), nil
}

func (w *WozImage) WriteTrack(t int, data []byte) error {
	return fmt.Errorf("%w: WOZ track write", ErrUnsupported)
}

func (w *WozImage) CanWriteTracks() bool {
	return false
}

// BitsToNibbles packs an MSB-first bitstream into bytes the way the disk
// controller latches them: shift bits in and emit once the high bit is set.
func BitsToNibbles(data []byte, nbits int) []byte {
	if nbits > len(data)*8 {
		nbits = len(data) * 8
	}
	out := make([]byte, 0, nbits/8+1)
	var v byte
	for i := 0; i < nbits; i++ {
		bit := (data[i>>3] >> (7 - uint(i&7))) & 1
		v = v<<1 | bit
		if v&0x80 != 0 {
			out = append(out, v)
			v = 0
		}
	}
	return out
}
