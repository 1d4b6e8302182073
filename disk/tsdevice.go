package disk

import "fmt"

// TrackSectorDevice addresses 256 byte sectors by track and DOS logical
// sector number.
type TrackSectorDevice interface {
	Tracks() int
	SectorsPerTrack() int
	ReadSector(t, s int) ([]byte, error)
	WriteSector(t, s int, data []byte) error
}

type SectorOrder int

const (
	SectorOrderDOS33 SectorOrder = iota
	SectorOrderProDOS
	SectorOrderPhysical
	SectorOrderNibble
	SectorOrderProDOSLinear
)

func (so SectorOrder) String() string {
	switch so {
	case SectorOrderDOS33:
		return "DOS"
	case SectorOrderProDOS:
		return "ProDOS"
	case SectorOrderPhysical:
		return "Physical"
	case SectorOrderNibble:
		return "Nibble"
	case SectorOrderProDOSLinear:
		return "Linear"
	}
	return "Linear"
}

// ParseSectorOrder accepts the names used in configuration files.
func ParseSectorOrder(s string) (SectorOrder, error) {
	switch s {
	case "dos", "do", "DOS":
		return SectorOrderDOS33, nil
	case "prodos", "po", "ProDOS":
		return SectorOrderProDOS, nil
	case "physical", "Physical":
		return SectorOrderPhysical, nil
	case "nibble", "Nibble":
		return SectorOrderNibble, nil
	case "linear", "Linear":
		return SectorOrderProDOSLinear, nil
	}
	return SectorOrderDOS33, fmt.Errorf("unknown sector order %q", s)
}

func checkTS(d TrackSectorDevice, t, s int) error {
	if t < 0 || t >= d.Tracks() || s < 0 || s >= d.SectorsPerTrack() {
		return fmt.Errorf("%w: track %d sector %d", ErrInvalidAddress, t, s)
	}
	return nil
}

// SectorImage is a track/sector device over a plain sector image.
type SectorImage struct {
	src    *ByteSource
	order  SectorOrder
	tracks int
	spt    int
}

// NewSectorImage builds a device over src, which must hold whole tracks of
// spt sectors. ProDOS and physical orders require 16 sectors per track.
func NewSectorImage(src *ByteSource, order SectorOrder, spt int) (*SectorImage, error) {
	if spt <= 0 || src.Size()%(spt*STD_BYTES_PER_SECTOR) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not whole tracks of %d sectors", ErrInvalidAddress, src.Size(), spt)
	}
	if order != SectorOrderDOS33 && order != SectorOrderPhysical && order != SectorOrderProDOS {
		return nil, fmt.Errorf("%w: %s order on a sector image", ErrUnsupported, order)
	}
	if order == SectorOrderProDOS && spt != STD_SECTORS_PER_TRACK {
		return nil, fmt.Errorf("%w: ProDOS order needs 16 sectors per track", ErrUnsupported)
	}
	return &SectorImage{
		src:    src,
		order:  order,
		tracks: src.Size() / (spt * STD_BYTES_PER_SECTOR),
		spt:    spt,
	}, nil
}

func (d *SectorImage) Tracks() int          { return d.tracks }
func (d *SectorImage) SectorsPerTrack() int { return d.spt }
func (d *SectorImage) Order() SectorOrder   { return d.order }

// offset maps a DOS logical sector to its byte offset in the image.
func (d *SectorImage) offset(t, s int) int {
	pos := s
	if d.spt == STD_SECTORS_PER_TRACK {
		switch d.order {
		case SectorOrderProDOS:
			pos = PRODOS_SECTOR_ORDER[dosToPhysical[s]]
		case SectorOrderPhysical:
			pos = dosToPhysical[s]
		}
	}
	return (t*d.spt + pos) * STD_BYTES_PER_SECTOR
}

func (d *SectorImage) ReadSector(t, s int) ([]byte, error) {
	if err := checkTS(d, t, s); err != nil {
		return nil, err
	}
	return d.src.Read(d.offset(t, s), STD_BYTES_PER_SECTOR)
}

func (d *SectorImage) WriteSector(t, s int, data []byte) error {
	if err := checkTS(d, t, s); err != nil {
		return err
	}
	if len(data) != STD_BYTES_PER_SECTOR {
		return fmt.Errorf("%w: sector data is %d bytes", ErrInvalidAddress, len(data))
	}
	return d.src.Write(d.offset(t, s), data)
}
