package statistics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"image-workbench/internal/presenter"
)

// Statistics accumulates workbench activity. It implements workbench.Recorder
// and is safe for concurrent use, so one instance can serve every session.
type Statistics struct {
	Uploads               int64
	Rejected              int64
	CompressionsStarted   int64
	CompressionsSucceeded int64
	CompressionsFailed    int64
	StaleResults          int64
	Resets                int64

	BytesUploaded   int64
	BytesIn         int64
	BytesOut        int64
	StartTime       time.Time
	CompressionTime time.Duration

	mutex sync.RWMutex
}

// Report is a point-in-time copy suitable for JSON encoding.
type Report struct {
	Uploads               int64   `json:"uploads"`
	Rejected              int64   `json:"rejected"`
	CompressionsStarted   int64   `json:"compressions_started"`
	CompressionsSucceeded int64   `json:"compressions_succeeded"`
	CompressionsFailed    int64   `json:"compressions_failed"`
	StaleResults          int64   `json:"stale_results"`
	Resets                int64   `json:"resets"`
	BytesUploaded         int64   `json:"bytes_uploaded"`
	BytesSaved            int64   `json:"bytes_saved"`
	AverageReduction      float64 `json:"average_reduction_percent"`
	AverageCompressionMS  int64   `json:"average_compression_ms"`
	Uptime                string  `json:"uptime"`
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// RecordUpload counts an accepted image of size bytes.
func (s *Statistics) RecordUpload(size int64) {
	atomic.AddInt64(&s.Uploads, 1)
	atomic.AddInt64(&s.BytesUploaded, size)
}

// RecordRejected counts a candidate refused by validation.
func (s *Statistics) RecordRejected() {
	atomic.AddInt64(&s.Rejected, 1)
}

// RecordCompressionStarted counts a compression handed to the compressor.
func (s *Statistics) RecordCompressionStarted() {
	atomic.AddInt64(&s.CompressionsStarted, 1)
}

// RecordCompressionSucceeded counts a committed result and its byte savings.
func (s *Statistics) RecordCompressionSucceeded(originalSize, compressedSize int64, took time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.CompressionsSucceeded++
	s.BytesIn += originalSize
	s.BytesOut += compressedSize
	s.CompressionTime += took
}

// RecordCompressionFailed counts a compressor rejection.
func (s *Statistics) RecordCompressionFailed() {
	atomic.AddInt64(&s.CompressionsFailed, 1)
}

// RecordStaleResult counts a result discarded after a reset or new upload.
func (s *Statistics) RecordStaleResult() {
	atomic.AddInt64(&s.StaleResults, 1)
}

// RecordReset counts a user initiated clear.
func (s *Statistics) RecordReset() {
	atomic.AddInt64(&s.Resets, 1)
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() Report {
	s.mutex.RLock()
	succeeded := s.CompressionsSucceeded
	bytesIn, bytesOut := s.BytesIn, s.BytesOut
	took := s.CompressionTime
	s.mutex.RUnlock()

	r := Report{
		Uploads:               atomic.LoadInt64(&s.Uploads),
		Rejected:              atomic.LoadInt64(&s.Rejected),
		CompressionsStarted:   atomic.LoadInt64(&s.CompressionsStarted),
		CompressionsSucceeded: succeeded,
		CompressionsFailed:    atomic.LoadInt64(&s.CompressionsFailed),
		StaleResults:          atomic.LoadInt64(&s.StaleResults),
		Resets:                atomic.LoadInt64(&s.Resets),
		BytesUploaded:         atomic.LoadInt64(&s.BytesUploaded),
		BytesSaved:            bytesIn - bytesOut,
		AverageReduction:      presenter.ReductionPercent(bytesIn, bytesOut),
		Uptime:                time.Since(s.StartTime).Round(time.Second).String(),
	}
	if succeeded > 0 {
		r.AverageCompressionMS = took.Milliseconds() / succeeded
	}
	return r
}

// GetSummary returns a human-readable summary.
func (s *Statistics) GetSummary() string {
	r := s.Snapshot()

	var b strings.Builder
	b.WriteString("==================================================\n")
	b.WriteString("IMAGE WORKBENCH STATISTICS\n")
	b.WriteString("==================================================\n")
	fmt.Fprintf(&b, "Uptime:                 %s\n", r.Uptime)
	fmt.Fprintf(&b, "Images uploaded:        %d (%s)\n", r.Uploads, presenter.FormatSize(r.BytesUploaded))
	fmt.Fprintf(&b, "Files rejected:         %d\n", r.Rejected)
	fmt.Fprintf(&b, "Compressions started:   %d\n", r.CompressionsStarted)
	fmt.Fprintf(&b, "Compressions succeeded: %d\n", r.CompressionsSucceeded)
	fmt.Fprintf(&b, "Compressions failed:    %d\n", r.CompressionsFailed)
	fmt.Fprintf(&b, "Stale results dropped:  %d\n", r.StaleResults)
	fmt.Fprintf(&b, "Resets:                 %d\n", r.Resets)
	if r.CompressionsSucceeded > 0 {
		fmt.Fprintf(&b, "Space saved:            %s (%s%% average)\n",
			presenter.FormatSize(r.BytesSaved), presenter.FormatPercent(r.AverageReduction))
		fmt.Fprintf(&b, "Average compression:    %dms\n", r.AverageCompressionMS)
	}
	return b.String()
}
