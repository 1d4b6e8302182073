package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paleotronic/diskprobe/loggy"
)

type ContainerKind int

const (
	ContainerRaw ContainerKind = iota
	Container2MG
	ContainerDC42
	ContainerWoz
	ContainerNib
)

func (k ContainerKind) String() string {
	switch k {
	case Container2MG:
		return "2IMG"
	case ContainerDC42:
		return "DiskCopy 4.2"
	case ContainerWoz:
		return "WOZ"
	case ContainerNib:
		return "NIB"
	}
	return "Raw"
}

// Image is an opened disk image: its container metadata, the devices built
// over its payload and the filesystems identified on them.
type Image struct {
	Filename  string
	Size      int
	SHA256    string
	Container ContainerKind
	Info2MG   *Info2MG
	InfoDC42  *InfoDC42
	Woz       *WozImage

	// Payload is the storage inside any container header.
	Payload *ByteSource
	// Tracks is set for nibble images.
	Tracks  TrackImage
	Markers []DiskMarker
	Scanned bool

	Candidates []Candidate
	Disks      []*FormattedDisk
}

func OpenFile(path string, opts Options) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Open(filepath.Base(path), data, opts)
}

// Open identifies data. The filename is only used for its extension: ".po"
// and ".do" put their ordering first when a 140K image reads equally well
// both ways, and ".dc", ".dc42" and ".image" insist on a DiskCopy header.
func Open(filename string, data []byte, opts Options) (*Image, error) {
	img := &Image{
		Filename: filename,
		Size:     len(data),
		SHA256:   Checksum(data),
	}
	src := NewByteSource(data)
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".po":
		opts = opts.preferOrder(SectorOrderProDOS)
	case ".do":
		opts = opts.preferOrder(SectorOrderDOS33)
	}

	var err error
	switch {
	case Is2MG(data):
		img.Container = Container2MG
		img.Info2MG, img.Payload, err = Open2MG(src)
		if err != nil {
			return nil, err
		}
		if img.Info2MG.Locked {
			img.Payload = NewReadOnlySource(img.Payload.Bytes())
		}
		err = img.buildFrom2MG(opts)
	case IsWoz(data):
		img.Container = ContainerWoz
		img.Payload = src
		img.Woz, err = OpenWoz(src)
		if err != nil {
			return nil, err
		}
		img.Tracks = img.Woz
		if img.Woz.Info.DiskType == WOZ_DISK_525 {
			err = img.buildNibble(opts)
		}
	case IsDC42(data):
		var payload *ByteSource
		img.InfoDC42, payload, err = OpenDC42(src)
		if err != nil {
			if ext == ".dc" || ext == ".dc42" || ext == ".image" {
				return nil, err
			}
			img.Payload = src
			err = img.buildRaw(opts)
			break
		}
		img.Container = ContainerDC42
		img.Payload = payload
		err = img.buildBlocks()
	default:
		img.Payload = src
		err = img.buildRaw(opts)
	}
	if err != nil {
		return nil, err
	}

	img.Disks = Identify(img.Candidates, opts)
	loggy.Get(0).Logf("%s: %s container, %d candidates, %d disks", filename, img.Container, len(img.Candidates), len(img.Disks))
	return img, nil
}

func (img *Image) buildFrom2MG(opts Options) error {
	switch img.Info2MG.Format {
	case Format2MGNibble:
		return img.buildNibImage(opts)
	case Format2MGDOS:
		switch img.Payload.Size() {
		case STD_DISK_BYTES:
			return img.buildSectorOrders([]SectorOrder{SectorOrderDOS33})
		case STD_DISK_BYTES_OLD:
			return img.buildSectorOrders([]SectorOrder{SectorOrderPhysical})
		}
		return img.buildBlocks()
	default:
		if img.Payload.Size() == STD_DISK_BYTES {
			return img.buildSectorOrders([]SectorOrder{SectorOrderProDOS})
		}
		return img.buildBlocks()
	}
}

func (img *Image) buildRaw(opts Options) error {
	size := img.Payload.Size()
	switch {
	case size == STD_DISK_BYTES:
		orders := []SectorOrder{SectorOrderDOS33, SectorOrderProDOS}
		if opts.orderRank(SectorOrderProDOS) < opts.orderRank(SectorOrderDOS33) {
			orders[0], orders[1] = orders[1], orders[0]
		}
		return img.buildSectorOrders(orders)
	case size == STD_DISK_BYTES_OLD:
		return img.buildSectorOrders([]SectorOrder{SectorOrderPhysical})
	case IsNibSize(size):
		return img.buildNibImage(opts)
	case size > 0 && size%PRODOS_BLOCK_SIZE == 0:
		return img.buildBlocks()
	}
	loggy.Get(0).Debugf("%s: no geometry for %d bytes", img.Filename, size)
	return nil
}

func (img *Image) buildSectorOrders(orders []SectorOrder) error {
	spt := STD_SECTORS_PER_TRACK
	if img.Payload.Size() == STD_DISK_BYTES_OLD {
		spt = STD_SECTORS_PER_TRACK_OLD
	}
	for _, o := range orders {
		ts, err := NewSectorImage(img.Payload, o, spt)
		if err != nil {
			return err
		}
		c := Candidate{Order: o, Sectors: ts}
		if spt == STD_SECTORS_PER_TRACK {
			c.Blocks, _ = NewSectorBlocks(ts)
		}
		img.Candidates = append(img.Candidates, c)
	}
	return nil
}

func (img *Image) buildBlocks() error {
	bd, err := NewLinearBlocks(img.Payload)
	if err != nil {
		return err
	}
	img.Candidates = append(img.Candidates, Candidate{Order: SectorOrderProDOSLinear, Blocks: bd})
	return nil
}

func (img *Image) buildNibImage(opts Options) error {
	nib, err := NewNibImage(img.Payload)
	if err != nil {
		return err
	}
	if img.Container == ContainerRaw {
		img.Container = ContainerNib
	}
	img.Tracks = nib
	return img.buildNibble(opts)
}

// buildNibble picks the framing for a nibble image: the best standard
// marker if it frames enough tracks, otherwise the scanner.
func (img *Image) buildNibble(opts Options) error {
	tracks := img.Tracks.Tracks()
	best, bestN := DiskMarker{}, 0
	for _, m := range StandardMarkers {
		if n := ProbeMarker(img.Tracks, m); n > bestN {
			best, bestN = m, n
		}
	}

	switch {
	case bestN > SCAN_MIN_TRACKS || (bestN > 0 && bestN == tracks):
		img.Markers = []DiskMarker{best}
	case opts.ScanProtected:
		markers, err := Scan(img.Tracks)
		if err == nil {
			img.Markers = markers
			img.Scanned = true
			break
		}
		if !errors.Is(err, ErrFramingNotFound) {
			return err
		}
		loggy.Get(0).Logf("%s: %v", img.Filename, err)
		if bestN > 0 {
			img.Markers = []DiskMarker{best}
		}
	case bestN > 0:
		img.Markers = []DiskMarker{best}
	}
	if img.Markers == nil {
		return nil
	}

	nd, err := NewNibbleDevice(img.Tracks, img.Markers, opts.TrackCache)
	if err != nil {
		return err
	}
	c := Candidate{Order: SectorOrderNibble, Sectors: nd}
	if nd.SectorsPerTrack() == STD_SECTORS_PER_TRACK {
		c.Blocks, _ = NewSectorBlocks(nd)
	}
	img.Candidates = append(img.Candidates, c)
	return nil
}

// Recognized reports whether any filesystem was accepted.
func (img *Image) Recognized() bool {
	return len(img.Disks) > 0
}

// Err returns ErrNotRecognized for images with no accepted filesystem.
func (img *Image) Err() error {
	if img.Recognized() {
		return nil
	}
	return fmt.Errorf("%s: %w", img.Filename, ErrNotRecognized)
}

// SectorDevice returns the first track/sector device, preferring those of
// accepted disks.
func (img *Image) SectorDevice() TrackSectorDevice {
	for _, d := range img.Disks {
		if d.Sectors != nil {
			return d.Sectors
		}
	}
	for _, c := range img.Candidates {
		if c.Sectors != nil {
			return c.Sectors
		}
	}
	return nil
}

// BlockDevice returns the first block device, preferring those of accepted
// disks.
func (img *Image) BlockDevice() BlockDevice {
	for _, d := range img.Disks {
		if d.Blocks != nil {
			return d.Blocks
		}
	}
	for _, c := range img.Candidates {
		if c.Blocks != nil {
			return c.Blocks
		}
	}
	return nil
}

func (img *Image) Changed() bool {
	return img.Payload != nil && img.Payload.Changed()
}
