package overlay

import "errors"

var (
	// ErrInvalidConfiguration is returned for non-positive image dimensions
	// or pixel ratios, and for a malformed center point.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDegeneratePolygon is returned when a ring has fewer than 3 distinct vertices.
	ErrDegeneratePolygon = errors.New("degenerate polygon")

	// ErrOutOfRangeEntity is only returned in strict mode, for pixels outside the image.
	ErrOutOfRangeEntity = errors.New("entity out of image range")
)
