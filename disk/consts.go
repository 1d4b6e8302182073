package disk

import (
	"crypto/sha256"
	"encoding/hex"
)

const STD_BYTES_PER_SECTOR = 256
const STD_TRACKS_PER_DISK = 35
const STD_SECTORS_PER_TRACK = 16
const STD_SECTORS_PER_TRACK_OLD = 13
const STD_DISK_BYTES = STD_TRACKS_PER_DISK * STD_SECTORS_PER_TRACK * STD_BYTES_PER_SECTOR
const STD_DISK_BYTES_OLD = STD_TRACKS_PER_DISK * STD_SECTORS_PER_TRACK_OLD * STD_BYTES_PER_SECTOR
const PRODOS_BLOCK_SIZE = 512
const PRODOS_800KB_BLOCKS = 1600
const PRODOS_800KB_DISK_BYTES = PRODOS_BLOCK_SIZE * PRODOS_800KB_BLOCKS
const PRODOS_400KB_BLOCKS = 800
const PRODOS_400KB_DISK_BYTES = PRODOS_BLOCK_SIZE * PRODOS_400KB_BLOCKS
const PRODOS_BLOCKS_PER_TRACK = 8
const PRODOS_BLOCKS_PER_DISK = 280
const PRODOS_ENTRY_SIZE = 0x27
const PRODOS_ENTRIES_PER_BLOCK = 0x0D

const TRACK_NIBBLE_LENGTH = 0x1A00
const TRACK_NIBBLE_LENGTH_NB2 = 0x18F0
const DISK_NIBBLE_LENGTH = TRACK_NIBBLE_LENGTH * STD_TRACKS_PER_DISK
const DISK_NIBBLE_LENGTH_NB2 = TRACK_NIBBLE_LENGTH_NB2 * STD_TRACKS_PER_DISK

// Wide DOS volumes (UniDOS, OzDOS) split an 800K disk into two 400K halves.
const WIDE_TRACKS = 50
const WIDE_SECTORS = 32
const WIDE_VOLUME_BYTES = WIDE_TRACKS * WIDE_SECTORS * STD_BYTES_PER_SECTOR

const DEFAULT_VOLUME = 254

// Checksum returns the hex SHA-256 of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DOS_33_SECTOR_ORDER maps a physical sector to the DOS 3.3 logical sector
// stored in it.
var DOS_33_SECTOR_ORDER = []int{
	0x00, 0x07, 0x0E, 0x06, 0x0D, 0x05, 0x0C, 0x04,
	0x0B, 0x03, 0x0A, 0x02, 0x09, 0x01, 0x08, 0x0F,
}

// PRODOS_SECTOR_ORDER maps a physical sector to its position within the
// track of a ProDOS-ordered image.
var PRODOS_SECTOR_ORDER = []int{
	0x00, 0x08, 0x01, 0x09, 0x02, 0x0a, 0x03, 0x0b,
	0x04, 0x0c, 0x05, 0x0d, 0x06, 0x0e, 0x07, 0x0f,
}

// dosToPhysical is the inverse of DOS_33_SECTOR_ORDER.
var dosToPhysical [16]int

// PRODOS_BLOCK_SECTORS holds the two DOS logical sectors making up each
// of the eight blocks on a track.
var PRODOS_BLOCK_SECTORS = [PRODOS_BLOCKS_PER_TRACK][2]int{
	{0x0, 0xE}, {0xD, 0xC}, {0xB, 0xA}, {0x9, 0x8},
	{0x7, 0x6}, {0x5, 0x4}, {0x3, 0x2}, {0x1, 0xF},
}

var NIBBLE_62 = []byte{
	0x96, 0x97, 0x9a, 0x9b, 0x9d, 0x9e, 0x9f, 0xa6,
	0xa7, 0xab, 0xac, 0xad, 0xae, 0xaf, 0xb2, 0xb3,
	0xb4, 0xb5, 0xb6, 0xb7, 0xb9, 0xba, 0xbb, 0xbc,
	0xbd, 0xbe, 0xbf, 0xcb, 0xcd, 0xce, 0xcf, 0xd3,
	0xd6, 0xd7, 0xd9, 0xda, 0xdb, 0xdc, 0xdd, 0xde,
	0xdf, 0xe5, 0xe6, 0xe7, 0xe9, 0xea, 0xeb, 0xec,
	0xed, 0xee, 0xef, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6,
	0xf7, 0xf9, 0xfa, 0xfb, 0xfc, 0xfd, 0xfe, 0xff}

var NIBBLE_53 = []byte{
	0xab, 0xad, 0xae, 0xaf, 0xb5, 0xb6, 0xb7, 0xba,
	0xbb, 0xbd, 0xbe, 0xbf, 0xd6, 0xd7, 0xda, 0xdb,
	0xdd, 0xde, 0xdf, 0xea, 0xeb, 0xed, 0xee, 0xef,
	0xf5, 0xf6, 0xf7, 0xfa, 0xfb, 0xfd, 0xfe, 0xff,
}

const invalidNibble = 0xFF

var (
	inv62 [256]byte
	inv53 [256]byte
)

func init() {
	for i := range inv62 {
		inv62[i] = invalidNibble
		inv53[i] = invalidNibble
	}
	for i, v := range NIBBLE_62 {
		inv62[v] = byte(i)
	}
	for i, v := range NIBBLE_53 {
		inv53[v] = byte(i)
	}
	for phys, logical := range DOS_33_SECTOR_ORDER {
		dosToPhysical[logical] = phys
	}
}
