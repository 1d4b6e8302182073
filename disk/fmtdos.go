package disk

import "fmt"

const (
	DOS_VTOC_TRACK      = 17
	DOS_VTOC_SECTOR     = 0
	DOS_TS_PAIRS        = 122
	DOS_MIN_TRACKS      = 18
	DOS_MAX_TRACKS      = 50
	DOS_CATALOG_ENTRIES = 7
	DOS_CATALOG_OFFSET  = 0x0B
	DOS_CATALOG_ENTRY   = 35
	DOS_DELETED_TRACK   = 0xFF
	DOS_ENTRY_SIZE_LO   = 0x21
	DOS_ENTRY_SIZE_HI   = 0x22
)

type VTOC struct {
	Data [256]byte
}

func (fd *VTOC) SetData(data []byte) {
	copy(fd.Data[:], data)
}

func (fd *VTOC) GetCatalogStart() (int, int) {
	return int(fd.Data[1]), int(fd.Data[2])
}

func (fd *VTOC) GetDOSVersion() byte {
	return fd.Data[3]
}

func (fd *VTOC) GetVolumeID() byte {
	return fd.Data[6]
}

func (fd *VTOC) GetMaxTSPairsPerSector() int {
	return int(fd.Data[0x27])
}

func (fd *VTOC) GetTracks() int {
	return int(fd.Data[0x34])
}

func (fd *VTOC) GetSectors() int {
	return int(fd.Data[0x35])
}

// checkDOSCatalog validates the VTOC of ts and walks its catalog chain. It
// returns the number of catalog sectors visited, or false to reject.
func checkDOSCatalog(ts TrackSectorDevice) (int, *VTOC, bool) {
	spt := ts.SectorsPerTrack()
	tracks := ts.Tracks()
	if tracks <= DOS_VTOC_TRACK {
		return 0, nil, false
	}

	data, err := ts.ReadSector(DOS_VTOC_TRACK, DOS_VTOC_SECTOR)
	if err != nil {
		return 0, nil, false
	}
	vtoc := &VTOC{}
	vtoc.SetData(data)

	ct, cs := vtoc.GetCatalogStart()
	if ct != DOS_VTOC_TRACK || cs >= spt ||
		vtoc.GetMaxTSPairsPerSector() != DOS_TS_PAIRS ||
		vtoc.GetTracks() < DOS_MIN_TRACKS || vtoc.GetTracks() > DOS_MAX_TRACKS ||
		vtoc.GetSectors() != spt {
		return 0, nil, false
	}

	// some disks hide the catalog by pointing at sector 0
	if cs == 0 && ct != 0 {
		cs = spt - 1
	}

	visited := map[int]bool{}
	chain := 0
	for ct != 0 {
		if ct >= tracks || cs >= spt {
			return 0, nil, false
		}
		key := ct*spt + cs
		if visited[key] {
			break
		}
		visited[key] = true

		sec, err := ts.ReadSector(ct, cs)
		if err != nil {
			return 0, nil, false
		}
		for i := 0; i < DOS_CATALOG_ENTRIES; i++ {
			e := sec[DOS_CATALOG_OFFSET+DOS_CATALOG_ENTRY*i:]
			ft, fs := int(e[0]), int(e[1])
			size := int(e[DOS_ENTRY_SIZE_LO]) | int(e[DOS_ENTRY_SIZE_HI])<<8
			if ft == 0 || ft == DOS_DELETED_TRACK || size == 0 {
				continue
			}
			if ft >= tracks || fs >= spt {
				return 0, nil, false
			}
		}
		chain++
		ct, cs = int(sec[1]), int(sec[2])
	}

	if chain == 0 {
		return 0, nil, false
	}
	return chain, vtoc, true
}

type dosFactory struct {
	opts Options
}

func (f *dosFactory) Name() string { return "dos" }

func (f *dosFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Sectors == nil {
			continue
		}
		if _, wide := c.Sectors.(*WideVolume); wide {
			continue
		}
		chain, vtoc, ok := checkDOSCatalog(c.Sectors)
		if !ok {
			continue
		}
		format := GetDiskFormat(DF_DOS_SECTORS_16)
		if c.Sectors.SectorsPerTrack() == STD_SECTORS_PER_TRACK_OLD {
			format = GetDiskFormat(DF_DOS_SECTORS_13)
		}
		hits = append(hits, &FormattedDisk{
			Format:     format,
			Order:      c.Order,
			Volume:     int(vtoc.GetVolumeID()),
			VolumeName: fmt.Sprintf("DISK VOLUME %d", vtoc.GetVolumeID()),
			Chain:      chain,
			Sectors:    c.Sectors,
			Blocks:     c.Blocks,
		})
	}
	return pickBest(hits, f.opts)
}

// wideDOSFactory looks for two DOS volumes on an 800K disk, in both the
// UniDOS and OzDOS layouts, and keeps the layout with the longer catalogs.
type wideDOSFactory struct {
	opts Options
}

func (f *wideDOSFactory) Name() string { return "widedos" }

func (f *wideDOSFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var best []*FormattedDisk
	bestScore, bestRank := 0, 0

	for _, c := range cands {
		if c.Blocks == nil || c.Blocks.Blocks() != PRODOS_800KB_BLOCKS {
			continue
		}
		for _, layout := range []WideLayout{WideUniDOS, WideOzDOS} {
			var found []*FormattedDisk
			score := 0
			for v := 0; v < 2; v++ {
				wv, err := NewWideVolume(c.Blocks, layout, v)
				if err != nil {
					continue
				}
				chain, vtoc, ok := checkDOSCatalog(wv)
				if !ok {
					continue
				}
				id := DF_UNIDOS
				if layout == WideOzDOS {
					id = DF_OZDOS
				}
				score += chain
				found = append(found, &FormattedDisk{
					Format:     GetDiskFormat(id),
					Order:      c.Order,
					Variant:    layout.String(),
					Index:      v,
					Volume:     int(vtoc.GetVolumeID()),
					VolumeName: fmt.Sprintf("DISK VOLUME %d", vtoc.GetVolumeID()),
					Chain:      chain,
					Sectors:    wv,
					Blocks:     c.Blocks,
				})
			}
			if len(found) == 0 {
				continue
			}
			rank := f.opts.wideRank(layout)
			if best == nil || score > bestScore || (score == bestScore && rank < bestRank) {
				best, bestScore, bestRank = found, score, rank
			}
		}
	}
	return best
}
