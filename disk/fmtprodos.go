package disk

import (
	"encoding/binary"
	"strings"
)

const (
	PRODOS_VOLUME_BLOCK = 2
	PRODOS_VDH_OFFSET   = 4
	PRODOS_STORAGE_VOL  = 0xF
)

type ProDOSStorageType int

// VDH is the volume directory header, the first entry of the key block.
type VDH struct {
	Data []byte
}

func (fd *VDH) SetData(block []byte) {
	fd.Data = block[PRODOS_VDH_OFFSET : PRODOS_VDH_OFFSET+PRODOS_ENTRY_SIZE]
}

func (fd *VDH) GetNameLength() int {
	return int(fd.Data[0] & 0xf)
}

func (fd *VDH) GetStorageType() ProDOSStorageType {
	return ProDOSStorageType((fd.Data[0]) >> 4)
}

func (fd *VDH) GetVolumeName() string {
	return strings.TrimSpace(string(fd.Data[1 : 1+fd.GetNameLength()]))
}

func (fd *VDH) GetEntryLength() int {
	return int(fd.Data[31])
}

func (fd *VDH) GetEntriesPerBlock() int {
	return int(fd.Data[32])
}

func (fd *VDH) GetFileCount() int {
	return int(fd.Data[33]) + 256*int(fd.Data[34])
}

func (fd *VDH) GetTotalBlocks() int {
	return int(fd.Data[37]) + 256*int(fd.Data[38])
}

// checkProDOSVolume validates the volume directory of bd and returns the
// number of directory blocks in its chain.
func checkProDOSVolume(bd BlockDevice) (int, *VDH, bool) {
	blocks := bd.Blocks()
	if blocks <= PRODOS_VOLUME_BLOCK {
		return 0, nil, false
	}
	key, err := bd.ReadBlock(PRODOS_VOLUME_BLOCK)
	if err != nil {
		return 0, nil, false
	}

	vdh := &VDH{}
	vdh.SetData(key)
	if binary.LittleEndian.Uint16(key[0:]) != 0 ||
		vdh.GetStorageType() != PRODOS_STORAGE_VOL ||
		vdh.GetEntryLength() != PRODOS_ENTRY_SIZE ||
		vdh.GetEntriesPerBlock() != PRODOS_ENTRIES_PER_BLOCK {
		return 0, nil, false
	}

	chain := 1
	visited := map[int]bool{PRODOS_VOLUME_BLOCK: true}
	next := int(binary.LittleEndian.Uint16(key[2:]))
	for next != 0 {
		if next >= blocks {
			return 0, nil, false
		}
		if visited[next] {
			break
		}
		visited[next] = true

		blk, err := bd.ReadBlock(next)
		if err != nil {
			return 0, nil, false
		}
		// backward links are known to be wrong on some disks; only require one
		if binary.LittleEndian.Uint16(blk[0:]) == 0 {
			return 0, nil, false
		}
		chain++
		next = int(binary.LittleEndian.Uint16(blk[2:]))
	}
	return chain, vdh, true
}

type prodosFactory struct {
	opts Options
}

func (f *prodosFactory) Name() string { return "prodos" }

func (f *prodosFactory) Inspect(cands []Candidate) []*FormattedDisk {
	var hits []*FormattedDisk
	for _, c := range cands {
		if c.Blocks == nil {
			continue
		}
		chain, vdh, ok := checkProDOSVolume(c.Blocks)
		if !ok {
			continue
		}
		hits = append(hits, &FormattedDisk{
			Format:     ProDOSFormatForBlocks(c.Blocks.Blocks()),
			Order:      c.Order,
			VolumeName: "/" + vdh.GetVolumeName(),
			Chain:      chain,
			Sectors:    c.Sectors,
			Blocks:     c.Blocks,
		})
	}
	return pickBest(hits, f.opts)
}
