package workbench

// AcceptPicked handles a file picker selection. Only the first file is used;
// an empty selection is rejected like an unsupported file.
func (w *Workbench) AcceptPicked(files []Candidate) (*SourceImage, error) {
	var c Candidate
	if len(files) > 0 {
		c = files[0]
	}
	return w.acceptCandidate(c)
}

// AcceptDropped handles a drag and drop payload. Only the first file is
// used; a drop carrying no file is ignored.
func (w *Workbench) AcceptDropped(files []Candidate) (*SourceImage, error) {
	if len(files) == 0 {
		return nil, nil
	}
	return w.acceptCandidate(files[0])
}

// acceptCandidate is the single validation path for both entry points.
func (w *Workbench) acceptCandidate(c Candidate) (*SourceImage, error) {
	log := w.logger.WithField("file", c.Name)

	w.mu.Lock()
	if !SupportedType(c.MIMEType) {
		w.resetLocked()
		w.errMsg = MsgUnsupportedFileType
		snap := w.commitLocked()
		observers := w.observers
		w.mu.Unlock()

		w.recorder.RecordRejected()
		log.WithField("mime_type", c.MIMEType).Warn("Rejected unsupported file")
		notify(observers, snap)
		return nil, &ValidationError{Name: c.Name, MIMEType: c.MIMEType}
	}

	w.releaseLocked()
	w.generation++
	w.compressed = nil
	w.source = &SourceImage{
		Name:     c.Name,
		MIMEType: c.MIMEType,
		Size:     int64(len(c.Data)),
		Data:     c.Data,
		Preview:  w.previews.Create(c.Data, c.MIMEType, c.Name),
	}
	w.errMsg = ""
	w.kind = KindReady
	src := *w.source
	snap := w.commitLocked()
	observers := w.observers
	w.mu.Unlock()

	w.recorder.RecordUpload(src.Size)
	log.WithField("size", src.Size).Info("Accepted image")
	notify(observers, snap)
	return &src, nil
}
