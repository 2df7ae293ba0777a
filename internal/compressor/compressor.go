package compressor

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned for MIME types the compressor cannot re-encode.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// File is an in-memory image as received from the user.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the length of the file in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Options configures a single compression call.
type Options struct {
	MaxSizeMB        float64
	MaxWidthOrHeight int
	UseWebWorker     bool
	InitialQuality   int
	MaxIteration     int
}

// MaxSizeBytes returns the size target in bytes.
func (o Options) MaxSizeBytes() int64 {
	return int64(o.MaxSizeMB * 1024 * 1024)
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress returns a re-encoded copy of file honoring opts. Implementations
	// should stop early when ctx is cancelled.
	Compress(ctx context.Context, file File, opts Options) (File, error)
}

// CompressorFunc adapts a function to the Compressor interface.
type CompressorFunc func(ctx context.Context, file File, opts Options) (File, error)

// Compress calls f.
func (f CompressorFunc) Compress(ctx context.Context, file File, opts Options) (File, error) {
	return f(ctx, file, opts)
}
