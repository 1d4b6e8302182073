package disk

import (
	"fmt"

	"github.com/paleotronic/diskprobe/loggy"
)

// Candidate is one interpretation of an image's storage. Either device may
// be nil when the geometry does not support it.
type Candidate struct {
	Order   SectorOrder
	Sectors TrackSectorDevice
	Blocks  BlockDevice
}

func (c Candidate) String() string {
	s := c.Order.String()
	if c.Sectors != nil {
		s += fmt.Sprintf(" %dx%d sectors", c.Sectors.Tracks(), c.Sectors.SectorsPerTrack())
	}
	if c.Blocks != nil {
		s += fmt.Sprintf(" %d blocks", c.Blocks.Blocks())
	}
	return s
}

// FormattedDisk is a filesystem accepted on one candidate. It borrows the
// candidate's devices.
type FormattedDisk struct {
	Format     DiskFormat
	Order      SectorOrder
	Variant    string
	Index      int
	Volume     int
	VolumeName string
	Chain      int
	Sectors    TrackSectorDevice
	Blocks     BlockDevice
}

func (fd *FormattedDisk) String() string {
	s := fmt.Sprintf("%s (%s order", fd.Format, fd.Order)
	if fd.Variant != "" {
		s += fmt.Sprintf(", %s volume %d", fd.Variant, fd.Index+1)
	}
	s += ")"
	if fd.VolumeName != "" {
		s += " " + fd.VolumeName
	}
	return s
}

// Options tunes identification.
type Options struct {
	// OrderPreference breaks ties between orderings of the same image.
	OrderPreference []SectorOrder
	// WidePreference breaks ties between UniDOS and OzDOS on 800K disks.
	WidePreference []WideLayout
	// ScanProtected enables the nibble scanner when no standard framing fits.
	ScanProtected bool
	// TrackCache is the number of decoded nibble tracks kept per device.
	TrackCache int
}

func DefaultOptions() Options {
	return Options{
		OrderPreference: []SectorOrder{SectorOrderDOS33, SectorOrderProDOS},
		WidePreference:  []WideLayout{WideUniDOS, WideOzDOS},
		ScanProtected:   true,
		TrackCache:      DEFAULT_TRACK_CACHE,
	}
}

func (o Options) orderRank(so SectorOrder) int {
	for i, v := range o.OrderPreference {
		if v == so {
			return i
		}
	}
	return len(o.OrderPreference)
}

// preferOrder returns a copy of o with so moved to the front of the order
// preference.
func (o Options) preferOrder(so SectorOrder) Options {
	pref := []SectorOrder{so}
	for _, v := range o.OrderPreference {
		if v != so {
			pref = append(pref, v)
		}
	}
	o.OrderPreference = pref
	return o
}

func (o Options) wideRank(l WideLayout) int {
	for i, v := range o.WidePreference {
		if v == l {
			return i
		}
	}
	return len(o.WidePreference)
}

// Factory recognises one filesystem family. Inspect never fails: anything
// it cannot read is simply not accepted.
type Factory interface {
	Name() string
	Inspect(cands []Candidate) []*FormattedDisk
}

// Factories returns the closed list of recognisers.
func Factories(opts Options) []Factory {
	return []Factory{
		&dosFactory{opts: opts},
		&wideDOSFactory{opts: opts},
		&prodosFactory{opts: opts},
		&pascalFactory{opts: opts},
		&rdosFactory{opts: opts},
		&gutenbergFactory{opts: opts},
		&nakedOSFactory{opts: opts},
	}
}

// Identify runs every factory over the candidates and unions the results.
func Identify(cands []Candidate, opts Options) []*FormattedDisk {
	var out []*FormattedDisk
	for _, f := range Factories(opts) {
		found := safeInspect(f, cands)
		for _, fd := range found {
			loggy.Get(0).Debugf("%s accepted %s", f.Name(), fd)
		}
		out = append(out, found...)
	}
	return out
}

// safeInspect turns a panic in a factory into a rejection.
func safeInspect(f Factory, cands []Candidate) (found []*FormattedDisk) {
	defer func() {
		if r := recover(); r != nil {
			loggy.Get(0).Errorf("%s: recovered from %v", f.Name(), r)
			found = nil
		}
	}()
	return f.Inspect(cands)
}

// pickBest keeps the accepted disk with the longest chain, ties going to
// the preferred ordering and then to the earliest candidate.
func pickBest(hits []*FormattedDisk, opts Options) []*FormattedDisk {
	var best *FormattedDisk
	for _, h := range hits {
		if best == nil || h.Chain > best.Chain ||
			(h.Chain == best.Chain && opts.orderRank(h.Order) < opts.orderRank(best.Order)) {
			best = h
		}
	}
	if best == nil {
		return nil
	}
	return []*FormattedDisk{best}
}
