package workbench

import (
	"context"
	"time"

	"image-workbench/internal/compressor"

	"github.com/sirupsen/logrus"
)

// Outcome describes how a compression job ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	// OutcomeCommitted means the result was stored and the state is Done.
	OutcomeCommitted
	// OutcomeFailed means the compressor rejected and the state is back to Ready.
	OutcomeFailed
	// OutcomeStale means a reset or new upload happened first; nothing changed.
	OutcomeStale
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return "pending"
	}
}

// Job is one outstanding compression.
type Job struct {
	generation uint64
	done       chan struct{}
	outcome    Outcome
	err        error
}

// Done is closed once the job's result has been committed or discarded.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Outcome reports how the job ended. It is OutcomePending until Done is closed.
func (j *Job) Outcome() Outcome {
	select {
	case <-j.done:
		return j.outcome
	default:
		return OutcomePending
	}
}

// Err returns the compressor error for failed or stale jobs.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.outcome, j.err
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

func (j *Job) finish(o Outcome, err error) {
	j.outcome = o
	j.err = err
	close(j.done)
}

// Compress starts compressing the current source image in the background.
// It returns nil without doing anything when there is no source image, a
// compression is already running, or a result already exists. ctx bounds the
// compressor call and should outlive the caller's request.
func (w *Workbench) Compress(ctx context.Context) *Job {
	w.mu.Lock()
	if w.source == nil || w.kind == KindCompressing || w.kind == KindDone {
		w.mu.Unlock()
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.kind = KindCompressing
	w.errMsg = ""

	job := &Job{generation: w.generation, done: make(chan struct{})}
	file := compressor.File{
		Name:     w.source.Name,
		MIMEType: w.source.MIMEType,
		Data:     w.source.Data,
	}
	snap := w.commitLocked()
	observers := w.observers
	w.mu.Unlock()

	w.recorder.RecordCompressionStarted()
	notify(observers, snap)

	go func() {
		defer cancel()
		start := time.Now()
		out, err := w.compressor.Compress(jobCtx, file, w.opts)
		w.complete(job, file, out, err, time.Since(start))
	}()

	return job
}

// complete commits a finished compression if its generation is still current.
func (w *Workbench) complete(job *Job, in compressor.File, out compressor.File, err error, took time.Duration) {
	log := w.logger.WithFields(logrus.Fields{
		"file":       in.Name,
		"operation":  "compress",
		"generation": job.generation,
	})

	w.mu.Lock()
	if job.generation != w.generation {
		w.mu.Unlock()
		w.recorder.RecordStaleResult()
		log.Debug("Discarding stale compression result")
		job.finish(OutcomeStale, err)
		return
	}

	w.cancel = nil
	if err != nil {
		w.kind = KindReady
		w.errMsg = MsgCompressionFailed
		snap := w.commitLocked()
		observers := w.observers
		w.mu.Unlock()

		w.recorder.RecordCompressionFailed()
		log.WithError(err).Error("Image compression failed")
		notify(observers, snap)
		job.finish(OutcomeFailed, &CompressionError{Name: in.Name, Err: err})
		return
	}

	mimeType := out.MIMEType
	if mimeType == "" {
		mimeType = in.MIMEType
	}
	w.compressed = &CompressedImage{
		MIMEType: mimeType,
		Size:     out.Size(),
		Data:     out.Data,
		Preview:  w.previews.Create(out.Data, mimeType, in.Name),
	}
	w.kind = KindDone
	snap := w.commitLocked()
	observers := w.observers
	w.mu.Unlock()

	w.recorder.RecordCompressionSucceeded(in.Size(), out.Size(), took)
	log.WithFields(logrus.Fields{
		"original_size":   in.Size(),
		"compressed_size": out.Size(),
	}).Info("Compression committed")
	notify(observers, snap)
	job.finish(OutcomeCommitted, nil)
}
