package workbench

import "time"

// Recorder receives lifecycle events for accounting.
type Recorder interface {
	RecordUpload(size int64)
	RecordRejected()
	RecordCompressionStarted()
	RecordCompressionSucceeded(originalSize, compressedSize int64, took time.Duration)
	RecordCompressionFailed()
	RecordStaleResult()
	RecordReset()
}

type nopRecorder struct{}

func (nopRecorder) RecordUpload(int64)                                     {}
func (nopRecorder) RecordRejected()                                        {}
func (nopRecorder) RecordCompressionStarted()                              {}
func (nopRecorder) RecordCompressionSucceeded(int64, int64, time.Duration) {}
func (nopRecorder) RecordCompressionFailed()                               {}
func (nopRecorder) RecordStaleResult()                                     {}
func (nopRecorder) RecordReset()                                           {}
