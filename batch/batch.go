// Package batch identifies every disk image under a directory tree.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"

	"github.com/paleotronic/diskprobe/cache"
	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/fetch"
	"github.com/paleotronic/diskprobe/loggy"
	"github.com/paleotronic/diskprobe/report"
)

var diskRegex = regexp.MustCompile(`(?i)[.](po|do|dsk|d13|nib|2mg|2img|woz|dc|dc42|image|hdv)([.](gz|zst))?$`)

// IsDiskName reports whether a file name looks like a disk image.
func IsDiskName(name string) bool {
	return diskRegex.MatchString(name)
}

// Recorder stores results; *catalog.Catalog satisfies it.
type Recorder interface {
	Record(ctx context.Context, d *report.Disk) error
}

type Ingestor struct {
	Fetcher *fetch.Fetcher
	Options disk.Options
	Workers int
	// Cache and Catalog are optional.
	Cache   *cache.Cache
	Catalog Recorder
	// Progress receives a progress bar when set.
	Progress io.Writer
}

// Stats summarises a run. Families counts accepted volumes per filesystem
// family.
type Stats struct {
	Processed  int
	Recognized int
	Cached     int
	Errors     int
	Families   map[string]int
	Duration   time.Duration
	Results    []*report.Disk
	Failed     map[string]error
	Workers    int
}

// Collect walks root and returns the disk images not excluded by its
// .diskignore, sorted.
func Collect(root string) ([]string, error) {
	m, err := NewMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", IgnoreFile, err)
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			loggy.Get(0).Errorf("walk %s: %v", path, err)
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		if m.Matches(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsDiskName(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// Ingest collects root and runs every image found.
func (ing *Ingestor) Ingest(ctx context.Context, root string) (*Stats, error) {
	paths, err := Collect(root)
	if err != nil {
		return nil, err
	}
	return ing.Run(ctx, paths)
}

// Run identifies each location. A failing image is counted and skipped; a
// failing catalog stops the run.
func (ing *Ingestor) Run(ctx context.Context, locs []string) (*Stats, error) {
	start := time.Now()
	workers := max(ing.Workers, 1)
	st := &Stats{
		Families: map[string]int{},
		Failed:   map[string]error{},
		Workers:  workers,
	}
	fetcher := ing.Fetcher
	if fetcher == nil {
		fetcher = &fetch.Fetcher{}
	}

	var bar *pb.ProgressBar
	if ing.Progress != nil {
		bar = pb.New(len(locs)).SetWriter(ing.Progress).Start()
		defer bar.Finish()
	}

	results := make([]*report.Disk, len(locs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, loc := range locs {
		g.Go(func() error {
			if bar != nil {
				defer bar.Increment()
			}
			d, cached, err := ing.one(gctx, fetcher, loc)
			if err != nil {
				loggy.Get(0).Errorf("%s: %v", loc, err)
				mu.Lock()
				st.Errors++
				st.Failed[loc] = err
				mu.Unlock()
				return nil
			}
			if ing.Catalog != nil {
				if err := ing.Catalog.Record(gctx, d); err != nil {
					return fmt.Errorf("record %s: %w", loc, err)
				}
			}
			results[i] = d

			mu.Lock()
			defer mu.Unlock()
			st.Processed++
			if cached {
				st.Cached++
			}
			if d.Recognized() {
				st.Recognized++
			}
			for _, v := range d.Volumes {
				st.Families[v.Family]++
			}
			return nil
		})
	}
	err := g.Wait()

	for _, d := range results {
		if d != nil {
			st.Results = append(st.Results, d)
		}
	}
	st.Duration = time.Since(start)
	return st, err
}

// one identifies a single image. Decoder panics are turned into errors so
// one bad image cannot take down the run.
func (ing *Ingestor) one(ctx context.Context, fetcher *fetch.Fetcher, loc string) (d *report.Disk, cached bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			loggy.Get(0).Errorf("panic on %s: %v\n%s", loc, r, debug.Stack())
			d, cached, err = nil, false, fmt.Errorf("panic: %v", r)
		}
	}()

	name, data, err := fetcher.Fetch(ctx, loc)
	if err != nil {
		return nil, false, err
	}
	sha := disk.Checksum(data)
	variant := cache.Variant(name, ing.Options)
	if d, ok := ing.Cache.Get(ctx, loc, name, sha, variant); ok {
		return d, true, nil
	}

	img, err := disk.Open(name, data, ing.Options)
	if err != nil {
		return nil, false, err
	}
	d = report.FromImage(loc, img)
	ing.Cache.Put(ctx, variant, d)
	return d, false, nil
}

// Report prints the run summary.
func (st *Stats) Report(w io.Writer) {
	fmt.Fprintln(w, "=============================================================")
	fmt.Fprintf(w, " diskprobe ingest report (%d workers, %v)\n", st.Workers, st.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "=============================================================")

	families := make([]string, 0, len(st.Families))
	for f := range st.Families {
		families = append(families, f)
	}
	sort.Strings(families)
	for _, f := range families {
		fmt.Fprintf(w, "%-30s %6d\n", f, st.Families[f])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-30s %6d\n", "Images", st.Processed)
	fmt.Fprintf(w, "%-30s %6d\n", "Recognized", st.Recognized)
	fmt.Fprintf(w, "%-30s %6d\n", "From cache", st.Cached)
	fmt.Fprintf(w, "%-30s %6d\n", "Errors", st.Errors)

	if n := st.Processed + st.Errors; n > 0 {
		fmt.Fprintf(w, "\n%v average time spent per disk.\n", (st.Duration / time.Duration(n)).Round(time.Microsecond))
	}
}
