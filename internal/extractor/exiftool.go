package extractor

import (
	"fmt"

	"github.com/barasher/go-exiftool"
)

// ExiftoolInspector lists every tag exiftool knows about. It needs the
// exiftool binary on PATH.
type ExiftoolInspector struct {
	et *exiftool.Exiftool
}

// NewExiftoolInspector starts an exiftool process.
func NewExiftoolInspector() (*ExiftoolInspector, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolInspector{et: et}, nil
}

// Inspect returns the exiftool field map for path.
func (i *ExiftoolInspector) Inspect(path string) (map[string]interface{}, error) {
	files := i.et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return nil, files[0].Err
	}
	return files[0].Fields, nil
}

// Close stops the exiftool process.
func (i *ExiftoolInspector) Close() error {
	return i.et.Close()
}
