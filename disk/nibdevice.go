package disk

import (
	"fmt"

	"github.com/paleotronic/diskprobe/lru"
)

const DEFAULT_TRACK_CACHE = 8

// NibbleDevice reads sectors out of a nibble track image. Sixteen sector
// tracks are addressed by DOS logical sector; thirteen sector tracks are
// addressed physically.
type NibbleDevice struct {
	img     TrackImage
	markers []DiskMarker
	cache   *lru.Cache[int, []byte]
}

func NewNibbleDevice(img TrackImage, markers []DiskMarker, cacheTracks int) (*NibbleDevice, error) {
	if len(markers) == 0 {
		return nil, fmt.Errorf("%w: no disk markers", ErrFramingNotFound)
	}
	if cacheTracks <= 0 {
		cacheTracks = DEFAULT_TRACK_CACHE
	}
	return &NibbleDevice{
		img:     img,
		markers: markers,
		cache:   lru.New[int, []byte](cacheTracks),
	}, nil
}

func (d *NibbleDevice) Tracks() int {
	return d.img.Tracks()
}

// SectorsPerTrack is the largest sector count of any track's marker.
func (d *NibbleDevice) SectorsPerTrack() int {
	spt := 0
	for _, m := range d.markers {
		if m.Sectors > spt {
			spt = m.Sectors
		}
	}
	return spt
}

func (d *NibbleDevice) Markers() []DiskMarker {
	return d.markers
}

// CacheStats reports decoded track cache hits, misses and the number of
// tracks currently held.
func (d *NibbleDevice) CacheStats() (hits, misses, held int) {
	hits, misses = d.cache.Stats()
	return hits, misses, d.cache.Len()
}

func (d *NibbleDevice) track(t int) ([]byte, error) {
	if tr, ok := d.cache.Get(t); ok {
		return tr, nil
	}
	tr, err := d.img.ReadTrack(t)
	if err != nil {
		return nil, err
	}
	d.cache.Add(t, tr)
	return tr, nil
}

func physicalSector(m DiskMarker, s int) int {
	if m.Sectors == STD_SECTORS_PER_TRACK {
		return dosToPhysical[s]
	}
	return s
}

func (d *NibbleDevice) ReadSector(t, s int) ([]byte, error) {
	if err := checkTS(d, t, s); err != nil {
		return nil, err
	}
	m := MarkerFor(d.markers, t)
	if s >= m.Sectors {
		return nil, fmt.Errorf("%w: track %d sector %d", ErrSectorNotFound, t, s)
	}
	tr, err := d.track(t)
	if err != nil {
		return nil, err
	}
	return ReadSectorNibbles(tr, m, t, physicalSector(m, s))
}

func (d *NibbleDevice) WriteSector(t, s int, data []byte) error {
	if err := checkTS(d, t, s); err != nil {
		return err
	}
	if !d.img.CanWriteTracks() {
		return fmt.Errorf("%w: track image is read-only", ErrUnsupported)
	}
	m := MarkerFor(d.markers, t)
	tr, err := d.track(t)
	if err != nil {
		return err
	}
	tr = append([]byte(nil), tr...)
	if err := WriteSectorNibbles(tr, m, t, physicalSector(m, s), data); err != nil {
		return err
	}
	d.cache.Remove(t)
	return d.img.WriteTrack(t, tr)
}
