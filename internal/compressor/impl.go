package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"image-workbench/internal/extractor"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

const (
	// stepFactor shrinks both dimensions and quality on every retry.
	stepFactor = 0.95
	minQuality = 1
)

// DefaultCompressor resizes and re-encodes images in their source format
// until they fit the size target.
type DefaultCompressor struct {
	logger     logrus.FieldLogger
	exif       *extractor.EXIFExtractor
	workerPool chan struct{}
}

// NewDefaultCompressor creates a DefaultCompressor whose background pool runs
// at most workers encodes at once.
func NewDefaultCompressor(workers int, logger logrus.FieldLogger) *DefaultCompressor {
	if workers <= 0 {
		workers = 2
	}
	return &DefaultCompressor{
		logger:     logger,
		exif:       extractor.NewEXIFExtractor(logger),
		workerPool: make(chan struct{}, workers),
	}
}

// Compress implements Compressor. With opts.UseWebWorker the encode runs on
// the worker pool and the caller only waits for it.
func (c *DefaultCompressor) Compress(ctx context.Context, file File, opts Options) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if !opts.UseWebWorker {
		return c.compressOne(ctx, file, opts)
	}

	select {
	case c.workerPool <- struct{}{}:
	case <-ctx.Done():
		return File{}, ctx.Err()
	}

	type result struct {
		file File
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() { <-c.workerPool }()
		f, err := c.compressOne(ctx, file, opts)
		done <- result{file: f, err: err}
	}()

	select {
	case r := <-done:
		return r.file, r.err
	case <-ctx.Done():
		return File{}, ctx.Err()
	}
}

// compressOne performs the decode, orient, fit, encode loop for one file.
func (c *DefaultCompressor) compressOne(ctx context.Context, file File, opts Options) (File, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"file":      file.Name,
		"operation": "compress",
	})

	format := FormatFromMIME(file.MIMEType)
	if format == FormatUnknown {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, file.MIMEType)
	}

	img, err := decode(file.Data, format)
	if err != nil {
		return File{}, err
	}

	transformed := false
	if format == FormatJPEG {
		if o := c.exif.Orientation(bytes.NewReader(file.Data)); o.NeedsTransform() {
			img = applyOrientation(img, o)
			transformed = true
		}
	}

	if maxDim := opts.MaxWidthOrHeight; maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
			transformed = true
		}
	}

	quality := opts.InitialQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	maxBytes := opts.MaxSizeBytes()
	if maxBytes <= 0 {
		maxBytes = math.MaxInt64
	}
	origSize := file.Size()

	data, err := encode(img, format, quality)
	if err != nil {
		return File{}, err
	}

	base := img
	scale := 1.0
	for i := 0; i < opts.MaxIteration; i++ {
		size := int64(len(data))
		if size <= maxBytes && size <= origSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return File{}, err
		}

		scale *= stepFactor
		if format.Lossy() {
			quality = max(int(float64(quality)*stepFactor), minQuality)
		}
		b := base.Bounds()
		w := max(int(math.Round(float64(b.Dx())*scale)), 1)
		h := max(int(math.Round(float64(b.Dy())*scale)), 1)

		data, err = encode(imaging.Resize(base, w, h, imaging.Lanczos), format, quality)
		if err != nil {
			return File{}, err
		}
		log.Debugf("Iteration %d: %dx%d q=%d -> %d bytes", i+1, w, h, quality, len(data))
	}

	if !transformed && int64(len(data)) >= origSize {
		log.Debug("Compressed file not smaller than original, keeping original")
		data = file.Data
	}

	log.WithFields(logrus.Fields{
		"original_size":   origSize,
		"compressed_size": len(data),
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("Image compressed")

	return File{Name: file.Name, MIMEType: file.MIMEType, Data: data}, nil
}

// applyOrientation rotates or flips img so it displays upright.
func applyOrientation(img image.Image, o extractor.Orientation) image.Image {
	switch o {
	case extractor.OrientationFlipH:
		return imaging.FlipH(img)
	case extractor.OrientationRotate180:
		return imaging.Rotate180(img)
	case extractor.OrientationFlipV:
		return imaging.FlipV(img)
	case extractor.OrientationTranspose:
		return imaging.Transpose(img)
	case extractor.OrientationRotate90CW:
		return imaging.Rotate270(img)
	case extractor.OrientationTransverse:
		return imaging.Transverse(img)
	case extractor.OrientationRotate90CCW:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
