package disk

import "fmt"

type DiskFormatID int

const (
	DF_NONE DiskFormatID = iota
	DF_DOS_SECTORS_13
	DF_DOS_SECTORS_16
	DF_PRODOS
	DF_PRODOS_800KB
	DF_PASCAL
	DF_RDOS_3
	DF_RDOS_32
	DF_RDOS_33
	DF_PRODOS_400KB
	DF_PRODOS_CUSTOM
	DF_UNIDOS
	DF_OZDOS
	DF_GUTENBERG
	DF_NAKEDOS
)

type DiskFormat struct {
	ID  DiskFormatID
	bpd int
}

func GetDiskFormat(id DiskFormatID) DiskFormat {
	return DiskFormat{ID: id}
}

func GetPDDiskFormat(id DiskFormatID, blocks int) DiskFormat {
	return DiskFormat{ID: id, bpd: blocks}
}

// ProDOSFormatForBlocks picks the ProDOS variant for a volume size.
func ProDOSFormatForBlocks(blocks int) DiskFormat {
	switch blocks {
	case PRODOS_BLOCKS_PER_DISK:
		return GetDiskFormat(DF_PRODOS)
	case PRODOS_400KB_BLOCKS:
		return GetDiskFormat(DF_PRODOS_400KB)
	case PRODOS_800KB_BLOCKS:
		return GetDiskFormat(DF_PRODOS_800KB)
	}
	return GetPDDiskFormat(DF_PRODOS_CUSTOM, blocks)
}

func (f DiskFormat) String() string {
	switch f.ID {
	case DF_NONE:
		return "Unrecognized"
	case DF_DOS_SECTORS_13:
		return "Apple DOS 13 Sector"
	case DF_DOS_SECTORS_16:
		return "Apple DOS 16 Sector"
	case DF_PRODOS:
		return "ProDOS"
	case DF_PASCAL:
		return "Pascal"
	case DF_PRODOS_400KB:
		return "ProDOS 400Kb"
	case DF_PRODOS_800KB:
		return "ProDOS 800Kb"
	case DF_RDOS_3:
		return "SSI RDOS 3 (16/13/Physical)"
	case DF_RDOS_32:
		return "SSI RDOS 32 (13/13/Physical)"
	case DF_RDOS_33:
		return "SSI RDOS 33 (16/16/PD)"
	case DF_PRODOS_CUSTOM:
		return fmt.Sprintf("ProDOS Custom (%d blocks)", f.bpd)
	case DF_UNIDOS:
		return "UniDOS"
	case DF_OZDOS:
		return "OzDOS"
	case DF_GUTENBERG:
		return "Gutenberg"
	case DF_NAKEDOS:
		return "NakedOS"
	}
	return "Unrecognized"
}

// Family groups formats that share a filesystem.
func (f DiskFormat) Family() string {
	switch f.ID {
	case DF_DOS_SECTORS_13, DF_DOS_SECTORS_16, DF_UNIDOS, DF_OZDOS:
		return "dos"
	case DF_PRODOS, DF_PRODOS_400KB, DF_PRODOS_800KB, DF_PRODOS_CUSTOM:
		return "prodos"
	case DF_PASCAL:
		return "pascal"
	case DF_RDOS_3, DF_RDOS_32, DF_RDOS_33:
		return "rdos"
	case DF_GUTENBERG:
		return "gutenberg"
	case DF_NAKEDOS:
		return "nakedos"
	}
	return "none"
}

// BPD is the number of 512 byte blocks on the volume.
func (df DiskFormat) BPD() int {
	switch df.ID {
	case DF_DOS_SECTORS_13, DF_RDOS_3, DF_RDOS_32:
		return 222
	case DF_DOS_SECTORS_16, DF_RDOS_33, DF_PRODOS, DF_PASCAL, DF_GUTENBERG, DF_NAKEDOS:
		return 280
	case DF_PRODOS_800KB:
		return 1600
	case DF_PRODOS_400KB, DF_UNIDOS, DF_OZDOS:
		return 800
	case DF_PRODOS_CUSTOM:
		return df.bpd
	}
	return 0
}
