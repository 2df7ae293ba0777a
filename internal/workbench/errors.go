package workbench

import (
	"errors"
	"fmt"
)

// User-visible messages.
const (
	MsgUnsupportedFileType = "JPG, PNG, WebP形式の画像ファイルを選択してください。"
	MsgCompressionFailed   = "画像の圧縮中にエラーが発生しました。"
)

var (
	// ErrUnsupportedFileType matches every *ValidationError.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrCompressionFailed matches every *CompressionError.
	ErrCompressionFailed = errors.New("compression failed")
	// ErrNothingToDownload is returned by Download when no compressed image exists.
	ErrNothingToDownload = errors.New("no compressed image to download")
)

// ValidationError reports a rejected candidate.
type ValidationError struct {
	Name     string
	MIMEType string
}

func (e *ValidationError) Error() string {
	if e.Name == "" && e.MIMEType == "" {
		return "no file selected"
	}
	return fmt.Sprintf("unsupported file type %q for %s", e.MIMEType, e.Name)
}

// Is makes errors.Is(err, ErrUnsupportedFileType) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrUnsupportedFileType
}

// Message returns the localized text shown to the user.
func (e *ValidationError) Message() string {
	return MsgUnsupportedFileType
}

// CompressionError wraps a rejection from the compressor.
type CompressionError struct {
	Name string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compress %s: %v", e.Name, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCompressionFailed) hold.
func (e *CompressionError) Is(target error) bool {
	return target == ErrCompressionFailed
}

// Message returns the localized text shown to the user.
func (e *CompressionError) Message() string {
	return MsgCompressionFailed
}
