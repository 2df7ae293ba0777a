// Package workbench implements the upload, compress, result and reset
// lifecycle of a single image editing session.
//
// All state lives in one Workbench and changes only through its methods.
// Every accepted upload and every reset starts a new generation; a
// compression started in an older generation may still finish, but its
// result is discarded instead of being committed.
package workbench

import (
	"context"
	"sync"

	"image-workbench/internal/compressor"
	"image-workbench/internal/preview"

	"github.com/sirupsen/logrus"
)

// Observer is called with a fresh snapshot after every transition. It runs
// outside the workbench lock and must not block for long.
type Observer func(Snapshot)

// Workbench owns the state of one session.
type Workbench struct {
	compressor compressor.Compressor
	opts       compressor.Options
	previews   *preview.Registry
	recorder   Recorder
	logger     logrus.FieldLogger

	mu         sync.Mutex
	kind       Kind
	source     *SourceImage
	compressed *CompressedImage
	errMsg     string
	generation uint64
	version    uint64
	cancel     context.CancelFunc
	observers  []Observer
}

// New returns an empty Workbench. A nil recorder disables accounting.
func New(
	c compressor.Compressor,
	opts compressor.Options,
	previews *preview.Registry,
	recorder Recorder,
	logger logrus.FieldLogger,
) *Workbench {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Workbench{
		compressor: c,
		opts:       opts,
		previews:   previews,
		recorder:   recorder,
		logger:     logger,
	}
}

// Subscribe registers an observer for state changes.
func (w *Workbench) Subscribe(o Observer) {
	w.mu.Lock()
	w.observers = append(w.observers, o)
	w.mu.Unlock()
}

// Snapshot returns the current state.
func (w *Workbench) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Reset releases every preview handle and returns to Empty. It is safe from
// any state; an in-flight compression is cancelled and its result ignored.
func (w *Workbench) Reset() {
	w.mu.Lock()
	wasEmpty := w.kind == KindEmpty && w.errMsg == ""
	w.resetLocked()
	w.errMsg = ""
	snap := w.commitLocked()
	observers := w.observers
	w.mu.Unlock()

	if !wasEmpty {
		w.recorder.RecordReset()
		w.logger.Debug("Workbench reset")
	}
	notify(observers, snap)
}

// Download returns the compressed image under its download name.
func (w *Workbench) Download() (Download, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.compressed == nil || w.source == nil {
		return Download{}, ErrNothingToDownload
	}
	return Download{
		Filename: "compressed_" + w.source.Name,
		MIMEType: w.compressed.MIMEType,
		Data:     w.compressed.Data,
		Preview:  w.compressed.Preview,
	}, nil
}

// resetLocked clears all image state and starts a new generation.
func (w *Workbench) resetLocked() {
	w.releaseLocked()
	w.generation++
	w.source = nil
	w.compressed = nil
	w.kind = KindEmpty
}

// releaseLocked cancels in-flight work and revokes every live handle.
func (w *Workbench) releaseLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.compressed != nil {
		w.previews.Revoke(w.compressed.Preview)
	}
	if w.source != nil {
		w.previews.Revoke(w.source.Preview)
	}
}

// commitLocked marks a transition and returns the resulting snapshot.
func (w *Workbench) commitLocked() Snapshot {
	w.version++
	return w.snapshotLocked()
}

func (w *Workbench) snapshotLocked() Snapshot {
	snap := Snapshot{
		Kind:       w.kind,
		Error:      w.errMsg,
		Generation: w.generation,
		Version:    w.version,
	}
	if w.source != nil {
		src := *w.source
		snap.Source = &src
	}
	if w.compressed != nil {
		c := *w.compressed
		snap.Compressed = &c
	}
	return snap
}

func notify(observers []Observer, snap Snapshot) {
	for _, o := range observers {
		o(snap)
	}
}
