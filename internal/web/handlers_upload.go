package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/csvimport/internal/core"
)

// handleOpenSession reads a multipart upload (fields "file" and "target")
// and opens an import session for it.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r, 1); err != nil {
		fail(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, errNoFile)
		return
	}
	file.Close()

	data, err := readPart(header)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	snap, err := s.service.Open(r.Context(), core.OpenRequest{
		TargetKey: r.FormValue("target"),
		FileName:  header.Filename,
		Data:      data,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// handleAnalyze runs the open pipeline on every "file" part without
// creating sessions. An optional "target" field enables mapping.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	maxFiles := s.cfg.Import.MaxAnalyzeFiles
	if err := s.parseUploadForm(w, r, maxFiles); err != nil {
		fail(w, r, err)
		return
	}

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		fail(w, r, errNoFile)
		return
	}
	if len(parts) > maxFiles {
		fail(w, r, fmt.Errorf("%w: %d > %d", errTooManyFiles, len(parts), maxFiles))
		return
	}

	target := r.FormValue("target")
	reqs := make([]core.OpenRequest, len(parts))
	for i, fh := range parts {
		data, err := readPart(fh)
		if err != nil {
			respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		reqs[i] = core.OpenRequest{TargetKey: target, FileName: fh.Filename, Data: data}
	}

	results, err := s.service.AnalyzeFiles(r.Context(), reqs)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
