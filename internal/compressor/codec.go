package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an encoding the compressor can read and write.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
)

// FormatFromMIME maps a MIME type to a Format.
func FormatFromMIME(mimeType string) Format {
	switch mimeType {
	case "image/jpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// String returns the string representation of the Format.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	case FormatWebP:
		return "WebP"
	default:
		return "Unknown"
	}
}

// Lossy reports whether quality affects the encoded size.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

func decode(data []byte, format Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG, FormatPNG:
		img, err := imaging.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		return img, nil
	case FormatWebP:
		img, err := webp.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		return img, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
