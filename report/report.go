// Package report turns an opened disk image into a flat, serialisable
// summary and renders it for humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/paleotronic/diskprobe/disk"
)

// Volume is one accepted filesystem.
type Volume struct {
	Format   string `json:"format" cbor:"f"`
	Family   string `json:"family" cbor:"y"`
	Order    string `json:"order" cbor:"o"`
	Variant  string `json:"variant,omitempty" cbor:"v,omitempty"`
	Index    int    `json:"index,omitempty" cbor:"i,omitempty"`
	Name     string `json:"name,omitempty" cbor:"n,omitempty"`
	Number   int    `json:"number,omitempty" cbor:"u,omitempty"`
	Chain    int    `json:"chain" cbor:"c"`
	Blocks   int    `json:"blocks,omitempty" cbor:"b,omitempty"`
	Sectors  int    `json:"sectors,omitempty" cbor:"s,omitempty"`
	Tracks   int    `json:"tracks,omitempty" cbor:"t,omitempty"`
	Describe string `json:"describe" cbor:"d"`
}

// Disk is the identification result for one image file.
type Disk struct {
	FullPath   string   `json:"path" cbor:"p"`
	Filename   string   `json:"filename" cbor:"fn"`
	SHA256     string   `json:"sha256" cbor:"h"`
	Size       int      `json:"size" cbor:"sz"`
	Container  string   `json:"container" cbor:"ct"`
	Creator    string   `json:"creator,omitempty" cbor:"cr,omitempty"`
	Comment    string   `json:"comment,omitempty" cbor:"cm,omitempty"`
	Locked     bool     `json:"locked,omitempty" cbor:"lk,omitempty"`
	Candidates []string `json:"candidates" cbor:"ca"`
	Markers    []string `json:"markers,omitempty" cbor:"mk,omitempty"`
	Scanned    bool     `json:"scanned,omitempty" cbor:"sc,omitempty"`
	Volumes    []Volume `json:"volumes" cbor:"vo"`
	// Unreadable counts sectors that failed to decode on nibble images.
	Unreadable int `json:"unreadable,omitempty" cbor:"ur,omitempty"`
}

// Recognized reports whether any filesystem was accepted.
func (d *Disk) Recognized() bool {
	return len(d.Volumes) > 0
}

// FromImage summarises img. Nibble images also get their readable sector
// count, which costs a full decode of every track.
func FromImage(fullpath string, img *disk.Image) *Disk {
	d := &Disk{
		FullPath:   fullpath,
		Filename:   img.Filename,
		SHA256:     img.SHA256,
		Size:       img.Size,
		Container:  img.Container.String(),
		Scanned:    img.Scanned,
		Candidates: []string{},
		Volumes:    []Volume{},
	}
	switch {
	case img.Info2MG != nil:
		d.Creator = img.Info2MG.Creator
		d.Comment = img.Info2MG.Comment
		d.Locked = img.Info2MG.Locked
	case img.InfoDC42 != nil:
		d.Comment = img.InfoDC42.Name
	case img.Woz != nil:
		d.Creator = img.Woz.Info.Creator
		d.Locked = img.Woz.Info.WriteProtected
	}
	for _, c := range img.Candidates {
		d.Candidates = append(d.Candidates, c.String())
	}
	for _, m := range uniqueMarkers(img.Markers) {
		d.Markers = append(d.Markers, m.String())
	}
	for _, fd := range img.Disks {
		v := Volume{
			Format:   fd.Format.String(),
			Family:   fd.Format.Family(),
			Order:    fd.Order.String(),
			Variant:  fd.Variant,
			Index:    fd.Index,
			Name:     fd.VolumeName,
			Number:   fd.Volume,
			Chain:    fd.Chain,
			Describe: fd.String(),
		}
		if fd.Blocks != nil {
			v.Blocks = fd.Blocks.Blocks()
		}
		if fd.Sectors != nil {
			v.Tracks = fd.Sectors.Tracks()
			v.Sectors = fd.Sectors.SectorsPerTrack()
		}
		d.Volumes = append(d.Volumes, v)
	}
	if img.Tracks != nil && len(img.Markers) > 0 {
		if ts := img.SectorDevice(); ts != nil {
			for _, row := range Readability(ts) {
				for _, ok := range row {
					if !ok {
						d.Unreadable++
					}
				}
			}
		}
	}
	return d
}

func uniqueMarkers(ms []disk.DiskMarker) []disk.DiskMarker {
	var out []disk.DiskMarker
	seen := map[string]bool{}
	for _, m := range ms {
		k := m.String()
		if !seen[k] {
			seen[k] = true
			out = append(out, m)
		}
	}
	return out
}

// Readability decodes every sector and reports which ones came back.
func Readability(ts disk.TrackSectorDevice) [][]bool {
	out := make([][]bool, ts.Tracks())
	for t := range out {
		out[t] = make([]bool, ts.SectorsPerTrack())
		for s := range out[t] {
			_, err := ts.ReadSector(t, s)
			out[t][s] = err == nil
		}
	}
	return out
}

// WriteBitmap prints one line per track, a hex sector number where the
// sector reads and "::" where it does not.
func WriteBitmap(w io.Writer, bitmap [][]bool) {
	for t, row := range bitmap {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Track %.2d: ", t)
		for s, ok := range row {
			if ok {
				fmt.Fprintf(&sb, "%.2x ", s)
			} else {
				sb.WriteString(":: ")
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

// WriteText renders d the way the identify command prints it.
func WriteText(w io.Writer, d *Disk) {
	fmt.Fprintf(w, "%s\n", d.FullPath)
	fmt.Fprintf(w, "  container : %s (%d bytes)\n", d.Container, d.Size)
	fmt.Fprintf(w, "  sha256    : %s\n", d.SHA256)
	if d.Creator != "" {
		fmt.Fprintf(w, "  creator   : %s\n", d.Creator)
	}
	if d.Comment != "" {
		fmt.Fprintf(w, "  comment   : %s\n", d.Comment)
	}
	if d.Locked {
		fmt.Fprintf(w, "  locked    : yes\n")
	}
	for _, c := range d.Candidates {
		fmt.Fprintf(w, "  ordering  : %s\n", c)
	}
	for _, m := range d.Markers {
		if d.Scanned {
			fmt.Fprintf(w, "  scanned   : %s\n", m)
		} else {
			fmt.Fprintf(w, "  framing   : %s\n", m)
		}
	}
	if d.Unreadable > 0 {
		fmt.Fprintf(w, "  unreadable: %d sectors\n", d.Unreadable)
	}
	if !d.Recognized() {
		fmt.Fprintf(w, "  no filesystem recognized\n")
		return
	}
	for _, v := range d.Volumes {
		fmt.Fprintf(w, "  volume    : %s\n", v.Describe)
	}
}

func WriteJSON(w io.Writer, disks []*Disk) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(disks)
}

var (
	encMode, _ = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode()
	decMode, _ = cbor.DecOptions{
		MaxArrayElements: 10000,
		MaxMapPairs:      10000,
		MaxNestedLevels:  16,
		IndefLength:      cbor.IndefLengthForbidden,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
)

// MarshalCBOR encodes a summary canonically, so equal summaries give equal
// bytes.
func MarshalCBOR(d *Disk) ([]byte, error) {
	return encMode.Marshal(d)
}

func UnmarshalCBOR(data []byte) (*Disk, error) {
	var d Disk
	if err := decMode.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &d, nil
}

func WriteCBOR(w io.Writer, disks []*Disk) error {
	b, err := encMode.Marshal(disks)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
