package disk

import "errors"

var (
	// ErrContainer is returned when a container header is malformed or its
	// payload does not fit inside the source.
	ErrContainer = errors.New("invalid container")
	// ErrChecksum is returned when a nibble data field fails to decode.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrSectorNotFound is returned when no address field matches the
	// requested track and sector.
	ErrSectorNotFound = errors.New("sector not found")
	// ErrFramingNotFound is returned by the nibble scanner when too few
	// tracks could be framed.
	ErrFramingNotFound = errors.New("disk framing not found")
	// ErrUnsupported is returned for operations a codec or image cannot do.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrInvalidAddress is returned for out of range offsets, tracks, sectors
	// and blocks.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrNotRecognized is available to callers that need an error when no
	// format factory accepted an image.
	ErrNotRecognized = errors.New("format not recognized")
)

// IsUnreadable reports whether err means the sector exists but its contents
// could not be recovered.
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrChecksum) || errors.Is(err, ErrSectorNotFound)
}
