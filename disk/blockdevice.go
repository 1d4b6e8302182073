package disk

import "fmt"

// BlockDevice addresses 512 byte blocks.
type BlockDevice interface {
	Blocks() int
	ReadBlock(n int) ([]byte, error)
	WriteBlock(n int, data []byte) error
}

func checkBlock(d BlockDevice, n int, data []byte) error {
	if n < 0 || n >= d.Blocks() {
		return fmt.Errorf("%w: block %d", ErrInvalidAddress, n)
	}
	if data != nil && len(data) != PRODOS_BLOCK_SIZE {
		return fmt.Errorf("%w: block data is %d bytes", ErrInvalidAddress, len(data))
	}
	return nil
}

// SectorBlocks presents a 16 sector track/sector device as ProDOS blocks,
// eight per track.
type SectorBlocks struct {
	ts TrackSectorDevice
}

func NewSectorBlocks(ts TrackSectorDevice) (*SectorBlocks, error) {
	if ts.SectorsPerTrack() != STD_SECTORS_PER_TRACK {
		return nil, fmt.Errorf("%w: blocks need 16 sectors per track", ErrUnsupported)
	}
	return &SectorBlocks{ts: ts}, nil
}

func (b *SectorBlocks) Blocks() int {
	return b.ts.Tracks() * PRODOS_BLOCKS_PER_TRACK
}

func (b *SectorBlocks) sectors(n int) (int, [2]int) {
	return n / PRODOS_BLOCKS_PER_TRACK, PRODOS_BLOCK_SECTORS[n%PRODOS_BLOCKS_PER_TRACK]
}

func (b *SectorBlocks) ReadBlock(n int) ([]byte, error) {
	if err := checkBlock(b, n, nil); err != nil {
		return nil, err
	}
	t, secs := b.sectors(n)
	out := make([]byte, 0, PRODOS_BLOCK_SIZE)
	for _, s := range secs {
		data, err := b.ts.ReadSector(t, s)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", n, err)
		}
		out = append(out, data...)
	}
	return out, nil
}

func (b *SectorBlocks) WriteBlock(n int, data []byte) error {
	if err := checkBlock(b, n, data); err != nil {
		return err
	}
	t, secs := b.sectors(n)
	for i, s := range secs {
		if err := b.ts.WriteSector(t, s, data[i*STD_BYTES_PER_SECTOR:(i+1)*STD_BYTES_PER_SECTOR]); err != nil {
			return fmt.Errorf("block %d: %w", n, err)
		}
	}
	return nil
}

// LinearBlocks is a block device over a ProDOS-ordered image, where block n
// is simply at n*512.
type LinearBlocks struct {
	src *ByteSource
}

func NewLinearBlocks(src *ByteSource) (*LinearBlocks, error) {
	if src.Size() == 0 || src.Size()%PRODOS_BLOCK_SIZE != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not whole blocks", ErrInvalidAddress, src.Size())
	}
	return &LinearBlocks{src: src}, nil
}

func (b *LinearBlocks) Blocks() int {
	return b.src.Size() / PRODOS_BLOCK_SIZE
}

func (b *LinearBlocks) ReadBlock(n int) ([]byte, error) {
	if err := checkBlock(b, n, nil); err != nil {
		return nil, err
	}
	return b.src.Read(n*PRODOS_BLOCK_SIZE, PRODOS_BLOCK_SIZE)
}

func (b *LinearBlocks) WriteBlock(n int, data []byte) error {
	if err := checkBlock(b, n, data); err != nil {
		return err
	}
	return b.src.Write(n*PRODOS_BLOCK_SIZE, data)
}

// WideLayout selects how two 400K DOS volumes share an 800K disk.
type WideLayout int

const (
	WideUniDOS WideLayout = iota
	WideOzDOS
)

func (l WideLayout) String() string {
	if l == WideOzDOS {
		return "OzDOS"
	}
	return "UniDOS"
}

func ParseWideLayout(s string) (WideLayout, error) {
	switch s {
	case "unidos", "UniDOS":
		return WideUniDOS, nil
	case "ozdos", "OzDOS":
		return WideOzDOS, nil
	}
	return WideUniDOS, fmt.Errorf("unknown wide layout %q", s)
}

// WideVolume is a 50 track, 32 sector DOS volume on an 800K block device.
// UniDOS keeps volume N in half N of the disk; OzDOS keeps it in half N of
// every block.
type WideVolume struct {
	blocks BlockDevice
	layout WideLayout
	volume int
}

func NewWideVolume(bd BlockDevice, layout WideLayout, volume int) (*WideVolume, error) {
	if bd.Blocks() != PRODOS_800KB_BLOCKS {
		return nil, fmt.Errorf("%w: wide volumes need an 800K disk", ErrUnsupported)
	}
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("%w: volume %d", ErrInvalidAddress, volume)
	}
	return &WideVolume{blocks: bd, layout: layout, volume: volume}, nil
}

func (w *WideVolume) Tracks() int          { return WIDE_TRACKS }
func (w *WideVolume) SectorsPerTrack() int { return WIDE_SECTORS }
func (w *WideVolume) Layout() WideLayout   { return w.layout }
func (w *WideVolume) Volume() int          { return w.volume }

// locate returns the block holding the sector and the half within it.
func (w *WideVolume) locate(t, s int) (int, int) {
	linear := t*WIDE_SECTORS + s
	if w.layout == WideOzDOS {
		return linear, w.volume
	}
	return w.volume*(WIDE_VOLUME_BYTES/PRODOS_BLOCK_SIZE) + linear/2, linear % 2
}

func (w *WideVolume) ReadSector(t, s int) ([]byte, error) {
	if err := checkTS(w, t, s); err != nil {
		return nil, err
	}
	blk, half := w.locate(t, s)
	data, err := w.blocks.ReadBlock(blk)
	if err != nil {
		return nil, err
	}
	return data[half*STD_BYTES_PER_SECTOR : (half+1)*STD_BYTES_PER_SECTOR], nil
}

func (w *WideVolume) WriteSector(t, s int, data []byte) error {
	if err := checkTS(w, t, s); err != nil {
		return err
	}
	if len(data) != STD_BYTES_PER_SECTOR {
		return fmt.Errorf("%w: sector data is %d bytes", ErrInvalidAddress, len(data))
	}
	blk, half := w.locate(t, s)
	buf, err := w.blocks.ReadBlock(blk)
	if err != nil {
		return err
	}
	copy(buf[half*STD_BYTES_PER_SECTOR:], data)
	return w.blocks.WriteBlock(blk, buf)
}
