package web

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"image-workbench/internal/presenter"
	"image-workbench/internal/preview"
	"image-workbench/internal/workbench"

	"github.com/gorilla/mux"
	"github.com/wailsapp/mimetype"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    presenter.Render(sess.wb.Snapshot()),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Web.MaxUploadBytes())
	if err := r.ParseMultipartForm(s.cfg.Web.MaxUploadBytes()); err != nil {
		s.writeError(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	candidates, err := readCandidates(r.MultipartForm.File["file"])
	if err != nil {
		s.writeError(w, "Failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	var accept func([]workbench.Candidate) (*workbench.SourceImage, error)
	switch source := r.FormValue("source"); source {
	case "", "picker":
		accept = sess.wb.AcceptPicked
	case "drop":
		accept = sess.wb.AcceptDropped
	default:
		s.writeError(w, "Unknown upload source: "+source, http.StatusBadRequest)
		return
	}

	_, err = accept(candidates)
	view := presenter.Render(sess.wb.Snapshot())

	var verr *workbench.ValidationError
	if errors.As(err, &verr) {
		s.writeJSONStatus(w, APIResponse{
			Success: false,
			Error:   verr.Message(),
			Data:    view,
		}, http.StatusUnsupportedMediaType)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    view,
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	job := sess.wb.Compress(s.baseCtx)
	if job == nil {
		s.writeJSONStatus(w, APIResponse{
			Success: false,
			Error:   "Compression is not available in the current state",
			Data:    presenter.Render(sess.wb.Snapshot()),
		}, http.StatusConflict)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		s.writeJSONStatus(w, APIResponse{
			Success: true,
			Message: "Compression started",
			Data:    presenter.Render(sess.wb.Snapshot()),
		}, http.StatusAccepted)
		return
	}

	outcome, err := job.Wait(r.Context())
	view := presenter.Render(sess.wb.Snapshot())
	switch outcome {
	case workbench.OutcomeCommitted:
		s.writeJSON(w, APIResponse{Success: true, Message: "Compression finished", Data: view})
	case workbench.OutcomeFailed:
		s.writeJSONStatus(w, APIResponse{Success: false, Error: view.Error, Data: view}, http.StatusUnprocessableEntity)
	case workbench.OutcomeStale:
		s.writeJSONStatus(w, APIResponse{Success: false, Error: "Compression result discarded", Data: view}, http.StatusConflict)
	default:
		sess.log.Debugf("Client stopped waiting for compression: %v", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.wb.Reset()
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    presenter.Render(sess.wb.Snapshot()),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	d, err := sess.wb.Download()
	if errors.Is(err, workbench.ErrNothingToDownload) {
		s.writeError(w, "Nothing to download", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", d.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	if _, err := w.Write(d.Data); err != nil {
		sess.log.Errorf("Failed to write download: %v", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	h := preview.Handle(mux.Vars(r)["id"])

	entry, err := s.previews.Lookup(h)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", entry.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.Data)))
	if _, err := w.Write(entry.Data); err != nil {
		s.log.Errorf("Failed to write preview: %v", err)
	}
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary": s.stats.GetSummary(),
			"report":  s.stats.Snapshot(),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := sess.addClient(conn); err != nil {
		sess.log.Errorf("Failed to send initial state: %v", err)
		return
	}
	sess.log.Debug("WebSocket client connected")

	defer func() {
		sess.removeClient(conn)
		sess.log.Debug("WebSocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		sess.touch()
	}
}

// readCandidates loads every uploaded part into memory and settles its type.
func readCandidates(headers []*multipart.FileHeader) ([]workbench.Candidate, error) {
	candidates := make([]workbench.Candidate, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, workbench.Candidate{
			Name:     fh.Filename,
			MIMEType: ResolveMIMEType(fh.Header.Get("Content-Type"), data),
			Data:     data,
		})
	}
	return candidates, nil
}

// ResolveMIMEType re-validates a declared content type against the bytes.
// A missing or generic declaration takes the sniffed type. A supported
// declaration the content contradicts takes the sniffed type as well. An
// unsupported declaration is kept so it is rejected whatever the bytes are.
func ResolveMIMEType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mediaType
	} else {
		declared = ""
	}

	detected := mimetype.Detect(data)
	if declared == "" || declared == "application/octet-stream" {
		return detected.String()
	}
	if !workbench.SupportedType(declared) {
		return declared
	}
	if !detected.Is(declared) {
		return detected.String()
	}
	return declared
}
