package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvimport/internal/core"
)

// handleGetSession returns the current snapshot of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCloseSession discards a session.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetEncoding re-decodes a session. Body: {"encoding": "windows-1252"};
// "" or "auto" returns to the detected encoding.
func (s *Server) handleSetEncoding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Encoding string `json:"encoding"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	snap, err := s.service.SetEncoding(r.Context(), chi.URLParam(r, "id"), req.Encoding)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetOptions applies a partial parse options update.
func (s *Server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	var patch core.OptionsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}

	snap, err := s.service.SetOptions(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleMapField maps one field. Body: {"header": "E-mail"}; an empty
// header unmaps the field.
func (s *Server) handleMapField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Header string `json:"header"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	snap, err := s.service.MapField(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "field"), req.Header)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleAutoMatch fills unmapped fields from the headers.
func (s *Server) handleAutoMatch(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.AutoMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleClearMapping unmaps every field.
func (s *Server) handleClearMapping(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.ClearMapping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRecords returns every row projected onto the target's fields.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Records(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}
