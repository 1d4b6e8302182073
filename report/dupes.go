package report

import (
	"fmt"
	"io"
	"sort"
)

// DuplicateCollection groups image paths by whole-image SHA-256.
type DuplicateCollection struct {
	data map[string][]string
}

func (dc *DuplicateCollection) Add(checksum, fullpath string) {
	if dc.data == nil {
		dc.data = make(map[string][]string)
	}
	dc.data[checksum] = append(dc.data[checksum], fullpath)
}

// Groups returns every checksum seen more than once, with its paths in
// insertion order. Groups are sorted by their first path.
func (dc *DuplicateCollection) Groups() [][]string {
	var out [][]string
	for _, list := range dc.data {
		if len(list) > 1 {
			out = append(out, list)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (dc *DuplicateCollection) Report(w io.Writer) {
	var withDupes, extras int
	for _, list := range dc.Groups() {
		withDupes++
		original, dupes := list[0], list[1:]
		fmt.Fprintf(w, "\nVolume %s has %d duplicate(s):\n", original, len(dupes))
		for _, v := range dupes {
			fmt.Fprintf(w, " %s\n", v)
			extras++
		}
	}
	fmt.Fprintf(w, "\nSUMMARY\n")
	fmt.Fprintf(w, "=======\n")
	fmt.Fprintf(w, "Total disks which have duplicates: %d\n", withDupes)
	fmt.Fprintf(w, "Total redundant copies found     : %d\n", extras)
}
