package disk

import "fmt"

// TrackImage exposes the raw nibble stream of each track.
type TrackImage interface {
	Tracks() int
	ReadTrack(t int) ([]byte, error)
	WriteTrack(t int, data []byte) error
	CanWriteTracks() bool
}

// NibImage is a headerless raw nibble image: fixed size tracks laid end to
// end.
type NibImage struct {
	src      *ByteSource
	trackLen int
	tracks   int
}

// IsNibSize reports whether n is the size of a .nib or .nb2 image.
func IsNibSize(n int) bool {
	return n == DISK_NIBBLE_LENGTH || n == DISK_NIBBLE_LENGTH_NB2
}

func NewNibImage(src *ByteSource) (*NibImage, error) {
	var trackLen int
	switch src.Size() {
	case DISK_NIBBLE_LENGTH:
		trackLen = TRACK_NIBBLE_LENGTH
	case DISK_NIBBLE_LENGTH_NB2:
		trackLen = TRACK_NIBBLE_LENGTH_NB2
	default:
		return nil, fmt.Errorf("%w: %d bytes is not a nibble image", ErrContainer, src.Size())
	}
	return &NibImage{
		src:      src,
		trackLen: trackLen,
		tracks:   src.Size() / trackLen,
	}, nil
}

func (n *NibImage) Tracks() int {
	return n.tracks
}

func (n *NibImage) TrackLength() int {
	return n.trackLen
}

func (n *NibImage) ReadTrack(t int) ([]byte, error) {
	if t < 0 || t >= n.tracks {
		return nil, fmt.Errorf("%w: track %d", ErrInvalidAddress, t)
	}
	return n.src.Read(t*n.trackLen, n.trackLen)
}

func (n *NibImage) WriteTrack(t int, data []byte) error {
	if !n.CanWriteTracks() {
		return fmt.Errorf("%w: nibble image is read-only", ErrUnsupported)
	}
	if t < 0 || t >= n.tracks {
		return fmt.Errorf("%w: track %d", ErrInvalidAddress, t)
	}
	if len(data) != n.trackLen {
		return fmt.Errorf("%w: track data is %d bytes, want %d", ErrInvalidAddress, len(data), n.trackLen)
	}
	return n.src.Write(t*n.trackLen, data)
}

func (n *NibImage) CanWriteTracks() bool {
	return n.src.Has(CapWrite | CapRawTrackWrite)
}
