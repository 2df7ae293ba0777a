package extractor

import (
	"io"
	"time"
)

// MetadataExtractor reads image metadata from an in-memory or streamed image.
type MetadataExtractor interface {
	Extract(r io.Reader) (*Metadata, error)
}

// Inspector produces a full tag listing for an image on disk.
type Inspector interface {
	Inspect(path string) (map[string]interface{}, error)
	Close() error
}

// Orientation is the EXIF orientation tag value (1..8).
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationNormal
	OrientationFlipH
	OrientationRotate180
	OrientationFlipV
	OrientationTranspose
	OrientationRotate90CW
	OrientationTransverse
	OrientationRotate90CCW
)

// Metadata is the subset of EXIF the workbench cares about.
type Metadata struct {
	Orientation Orientation
	DateTime    *time.Time
	Software    string
	Camera      string
	Width       int
	Height      int
}

// String returns a human-readable description of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationNormal:
		return "Normal"
	case OrientationFlipH:
		return "Mirror horizontal"
	case OrientationRotate180:
		return "Rotate 180"
	case OrientationFlipV:
		return "Mirror vertical"
	case OrientationTranspose:
		return "Mirror horizontal and rotate 270 CW"
	case OrientationRotate90CW:
		return "Rotate 90 CW"
	case OrientationTransverse:
		return "Mirror horizontal and rotate 90 CW"
	case OrientationRotate90CCW:
		return "Rotate 270 CW"
	default:
		return "Unknown"
	}
}

// NeedsTransform reports whether pixels must be rotated or flipped for display.
func (o Orientation) NeedsTransform() bool {
	return o > OrientationNormal && o <= OrientationRotate90CCW
}
