// Package presenter derives everything the UI shows from a workbench
// snapshot. It has no side effects.
package presenter

import (
	"fmt"

	"image-workbench/internal/workbench"
)

// Labels shown by the workbench UI.
const (
	LabelTitle           = "画像圧縮ツール"
	LabelOriginalHeading = "元の画像"
	LabelCompressHeading = "圧縮後の画像"
	LabelDropPrompt      = "ここに画像をドラッグ＆ドロップ"
	LabelDropSeparator   = "または"
	LabelUploadButton    = "画像をアップロード"
	LabelCompressing     = "圧縮中..."
	LabelWaiting         = "圧縮待機中"
	LabelCompressButton  = "圧縮する"
	LabelDownloadButton  = "ダウンロード"
	LabelClearButton     = "クリア"
	originalSizeFormat   = "元のサイズ: %s"
	compressedSizeFormat = "圧縮後のサイズ: %s (▼%s%%削減)"
)

// View is the rendered state of the workbench.
type View struct {
	Title      string     `json:"title"`
	State      string     `json:"state"`
	Version    uint64     `json:"version"`
	Error      string     `json:"error,omitempty"`
	DropZone   *DropZone  `json:"drop_zone,omitempty"`
	Original   *ImagePane `json:"original,omitempty"`
	Compressed *ImagePane `json:"compressed,omitempty"`
	Buttons    *Buttons   `json:"buttons,omitempty"`
}

// DropZone is shown while no image is loaded.
type DropZone struct {
	Prompt    string `json:"prompt"`
	Separator string `json:"separator"`
	Button    string `json:"button"`
	Accept    string `json:"accept"`
}

// ImagePane is one side of the before/after comparison.
type ImagePane struct {
	Heading          string  `json:"heading"`
	PreviewURL       string  `json:"preview_url,omitempty"`
	Placeholder      string  `json:"placeholder,omitempty"`
	Size             int64   `json:"size"`
	SizeLabel        string  `json:"size_label,omitempty"`
	ReductionPercent float64 `json:"reduction_percent"`
}

// Button is a labelled action and whether it can be triggered.
type Button struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// Buttons are the actions available while an image is loaded.
type Buttons struct {
	Compress Button `json:"compress"`
	Download Button `json:"download"`
	Clear    Button `json:"clear"`
}

// Render builds the View for s.
func Render(s workbench.Snapshot) View {
	v := View{
		Title:   LabelTitle,
		State:   s.Kind.String(),
		Version: s.Version,
		Error:   s.Error,
	}

	if s.Source == nil {
		v.DropZone = &DropZone{
			Prompt:    LabelDropPrompt,
			Separator: LabelDropSeparator,
			Button:    LabelUploadButton,
			Accept:    workbench.AcceptFilter,
		}
		return v
	}

	compressing := s.Kind == workbench.KindCompressing

	v.Original = &ImagePane{
		Heading:    LabelOriginalHeading,
		PreviewURL: s.Source.Preview.URL(),
		Size:       s.Source.Size,
		SizeLabel:  OriginalSizeLabel(s.Source.Size),
	}

	v.Compressed = &ImagePane{Heading: LabelCompressHeading}
	switch {
	case compressing:
		v.Compressed.Placeholder = LabelCompressing
	case s.Compressed != nil:
		v.Compressed.PreviewURL = s.Compressed.Preview.URL()
		v.Compressed.Size = s.Compressed.Size
		v.Compressed.ReductionPercent = ReductionPercent(s.Source.Size, s.Compressed.Size)
		v.Compressed.SizeLabel = CompressedSizeLabel(s.Source.Size, s.Compressed.Size)
	default:
		v.Compressed.Placeholder = LabelWaiting
	}

	compressLabel := LabelCompressButton
	if compressing {
		compressLabel = LabelCompressing
	}
	v.Buttons = &Buttons{
		Compress: Button{Label: compressLabel, Enabled: !compressing && s.Compressed == nil},
		Download: Button{Label: LabelDownloadButton, Enabled: s.Compressed != nil},
		Clear:    Button{Label: LabelClearButton, Enabled: true},
	}
	return v
}

// OriginalSizeLabel renders "元のサイズ: <size>".
func OriginalSizeLabel(size int64) string {
	return fmt.Sprintf(originalSizeFormat, FormatSize(size))
}

// CompressedSizeLabel renders "圧縮後のサイズ: <size> (▼<pct>%削減)".
func CompressedSizeLabel(original, compressed int64) string {
	return fmt.Sprintf(compressedSizeFormat, FormatSize(compressed), FormatPercent(ReductionPercent(original, compressed)))
}
