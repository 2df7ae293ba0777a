package workbench

import (
	"image-workbench/internal/preview"
)

// Kind is the phase the workbench is in.
type Kind int

const (
	KindEmpty Kind = iota
	KindReady
	KindCompressing
	KindDone
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindReady:
		return "ready"
	case KindCompressing:
		return "compressing"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Candidate is a file offered by a picker or a drop event, before validation.
type Candidate struct {
	Name     string
	MIMEType string
	Data     []byte
}

// SourceImage is the accepted, not yet compressed image.
type SourceImage struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
	Preview  preview.Handle
}

// CompressedImage is the compressor output for the current SourceImage.
type CompressedImage struct {
	MIMEType string
	Size     int64
	Data     []byte
	Preview  preview.Handle
}

// Snapshot is a copy of the workbench state at one instant. Version grows
// with every transition so observers can drop out of order deliveries.
type Snapshot struct {
	Kind       Kind
	Source     *SourceImage
	Compressed *CompressedImage
	Error      string
	Generation uint64
	Version    uint64
}

// Download is what a save action hands to the user.
type Download struct {
	Filename string
	MIMEType string
	Data     []byte
	Preview  preview.Handle
}

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// SupportedType reports whether mimeType can be loaded into the workbench.
func SupportedType(mimeType string) bool {
	return supportedTypes[mimeType]
}

// AcceptFilter is the picker accept attribute matching SupportedType.
const AcceptFilter = "image/jpeg,image/png,image/webp"
