package disk

import (
	"bytes"
	"fmt"
	"io"
)

const (
	NIB_GAP1      = 15
	NIB_GAP2      = 6
	NIB_GAP3      = 38 - NIB_GAP2
	NIB_SYNC_BYTE = 0xFF
)

// Nibblize writes a 140K sector image out as a 232,960 byte .nib image,
// sixteen 6&2 sectors per track. order says how the input is laid out.
func Nibblize(data []byte, order SectorOrder, volume int) ([]byte, error) {
	if len(data) != STD_DISK_BYTES {
		return nil, fmt.Errorf("%w: nibblize needs %d bytes, got %d", ErrInvalidAddress, STD_DISK_BYTES, len(data))
	}

	var sectorOrder []int
	switch order {
	case SectorOrderDOS33:
		sectorOrder = DOS_33_SECTOR_ORDER
	case SectorOrderProDOS:
		sectorOrder = PRODOS_SECTOR_ORDER
	case SectorOrderPhysical:
		sectorOrder = make([]int, STD_SECTORS_PER_TRACK)
		for i := range sectorOrder {
			sectorOrder[i] = i
		}
	default:
		return nil, fmt.Errorf("%w: nibblize from %s order", ErrUnsupported, order)
	}

	output := bytes.NewBuffer(make([]byte, 0, DISK_NIBBLE_LENGTH))

	for track := 0; track < STD_TRACKS_PER_DISK; track++ {
		for sector := 0; sector < STD_SECTORS_PER_TRACK; sector++ {
			writeSyncBytes(output, NIB_GAP1)
			writeAddressBlock(output, DOS33Marker, track, sector, volume)
			writeSyncBytes(output, NIB_GAP2)

			offset := (track*STD_SECTORS_PER_TRACK + sectorOrder[sector]) * STD_BYTES_PER_SECTOR
			if err := writeDataBlock(output, DOS33Marker, data[offset:offset+STD_BYTES_PER_SECTOR]); err != nil {
				return nil, err
			}
			writeSyncBytes(output, NIB_GAP3)
		}
	}

	return output.Bytes(), nil
}

func writeSyncBytes(output io.Writer, n int) {
	output.Write(bytes.Repeat([]byte{NIB_SYNC_BYTE}, n))
}

func writeOddEven(output io.Writer, v int) {
	e := Encode44(byte(v))
	output.Write(e[:])
}

func writeAddressBlock(output io.Writer, m DiskMarker, track, sector int, volumeNumber int) {
	output.Write(m.AddrProlog)

	checksum := volumeNumber ^ track ^ sector
	writeOddEven(output, volumeNumber)
	writeOddEven(output, track)
	writeOddEven(output, sector)
	writeOddEven(output, checksum&0xff)

	output.Write(m.AddrEpilog)
}

func writeDataBlock(output io.Writer, m DiskMarker, sector []byte) error {
	raw, err := m.Codec.Encode(sector)
	if err != nil {
		return err
	}
	output.Write(m.DataProlog)
	output.Write(raw)
	output.Write(m.DataEpilog)
	return nil
}
