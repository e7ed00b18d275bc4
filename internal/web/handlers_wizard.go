package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assessx/internal/exchange"
	"github.com/JonMunkholm/assessx/internal/logging"
	"github.com/JonMunkholm/assessx/internal/wizard"
)

var errNoImport = errors.New("import not started")

// handleOpenWizard reads an uploaded file and starts a wizard for it.
func (s *Server) handleOpenWizard(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), 0)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, 0)
		return
	}
	defer file.Close()

	sess, err := s.wizards.Open(header.Filename, file)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.FromContext(r.Context()).Info("wizard opened",
		"wizard_id", sess.ID,
		"file", header.Filename,
		"size", header.Size,
	)
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// session resolves {id}, writing the error response when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sess, err := s.wizards.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = wizardSummary(sess.Snapshot()).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseWizard(w http.ResponseWriter, r *http.Request) {
	if err := s.wizards.Close(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req mappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	role, ok := exchange.ParseRole(req.Role)
	if !ok {
		respondError(w, r, fmt.Errorf("%w %q", errUnknownRole, req.Role), 0)
		return
	}

	msg, err := sess.SetMapping(role, req.Headers...)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{Role: string(role), Error: msg, Wizard: sess.Snapshot()})
}

func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "role")
	role, ok := exchange.ParseRole(name)
	if !ok {
		respondError(w, r, fmt.Errorf("%w %q", errUnknownRole, name), 0)
		return
	}

	msg, err := sess.RemoveMapping(role)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{Role: string(role), Error: msg, Wizard: sess.Snapshot()})
}

func (s *Server) handleEditName(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	st, err := sess.EditName(chi.URLParam(r, "entryID"), req.Name, time.Now())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBlurName(w http.ResponseWriter, r *http.Request) {
	s.toggleName(w, r, (*wizard.Session).BlurName)
}

func (s *Server) handleFocusName(w http.ResponseWriter, r *http.Request) {
	s.toggleName(w, r, (*wizard.Session).FocusName)
}

func (s *Server) toggleName(w http.ResponseWriter, r *http.Request, fn func(*wizard.Session, string) (wizard.NameState, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, err := fn(sess, chi.URLParam(r, "entryID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleStartImport starts the import. It answers 409 while anything still
// blocks it.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.wizards.StartImport(id)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("import started", "wizard_id", id, "run_id", run.ID())
	writeJSON(w, http.StatusAccepted, run.Progress())
}

// handleImportProgress streams import progress as Server-Sent Events. The
// last progress event of a run always has done set, and is followed by a
// complete event.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	run := sess.Run()
	if run == nil {
		respondError(w, r, errNoImport, http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errStreamingFailed, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	updates, unsubscribe := run.Subscribe()
	defer unsubscribe()

	eventID := 0
	for {
		select {
		case p, ok := <-updates:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(p)
			if err != nil {
				logging.FromContext(r.Context()).Error("progress encode failed", "error", err)
				return
			}
			eventID++
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
