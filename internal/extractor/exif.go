package extractor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// ErrNoEXIF is returned when the image carries no decodable EXIF block.
var ErrNoEXIF = errors.New("no EXIF data")

// EXIFExtractor extracts metadata from image files using the goexif decoder.
type EXIFExtractor struct {
	logger logrus.FieldLogger
}

// NewEXIFExtractor returns a new EXIFExtractor.
func NewEXIFExtractor(logger logrus.FieldLogger) *EXIFExtractor {
	return &EXIFExtractor{logger: logger}
}

// Extract decodes the EXIF block of r. Missing individual tags are left at
// their zero value; only a missing or corrupt block is an error.
func (e *EXIFExtractor) Extract(r io.Reader) (*Metadata, error) {
	x, err := exif.Decode(r)
	if err != nil {
		if exif.IsCriticalError(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoEXIF, err)
		}
		// Non-critical errors leave a partially decoded block behind.
		e.logger.Debugf("Partial EXIF decode: %v", err)
		if x == nil {
			return nil, fmt.Errorf("%w: %v", ErrNoEXIF, err)
		}
	}

	meta := &Metadata{
		Orientation: e.orientation(x),
		Software:    stringTag(x, exif.Software),
		Camera:      strings.TrimSpace(stringTag(x, exif.Make) + " " + stringTag(x, exif.Model)),
		Width:       intTag(x, exif.PixelXDimension),
		Height:      intTag(x, exif.PixelYDimension),
	}

	if tm, err := x.DateTime(); err == nil {
		meta.DateTime = &tm
	}

	return meta, nil
}

// Orientation returns the orientation of the image in r, or OrientationNormal
// when it cannot be determined.
func (e *EXIFExtractor) Orientation(r io.Reader) Orientation {
	meta, err := e.Extract(r)
	if err != nil || meta.Orientation == OrientationUnknown {
		return OrientationNormal
	}
	return meta.Orientation
}

func (e *EXIFExtractor) orientation(x *exif.Exif) Orientation {
	v := intTag(x, exif.Orientation)
	if v < int(OrientationNormal) || v > int(OrientationRotate90CCW) {
		if v != 0 {
			e.logger.Debugf("Ignoring out of range EXIF orientation %d", v)
		}
		return OrientationUnknown
	}
	return Orientation(v)
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(val, "\x00 ")
}

func intTag(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	val, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return val
}
