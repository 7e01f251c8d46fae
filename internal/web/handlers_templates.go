package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleListTemplates returns all import templates for a target.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context(), chi.URLParam(r, "target"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// handleMatchTemplates finds templates matching comma-separated headers in
// the "headers" query parameter.
func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	headersStr := r.URL.Query().Get("headers")
	if headersStr == "" {
		fail(w, r, errBadBody)
		return
	}

	headers := strings.Split(headersStr, ",")
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	matches, err := s.service.MatchTemplates(r.Context(), chi.URLParam(r, "target"), headers)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleCreateTemplate saves the mapping of a session as a template.
// Body: {"sessionId": "...", "name": "..."}.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Name      string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	snap, err := s.service.Snapshot(r.Context(), req.SessionID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if snap.TargetKey != chi.URLParam(r, "target") {
		respondError(w, r, errBadBody, http.StatusBadRequest)
		return
	}

	tpl, err := s.service.SaveTemplate(r.Context(), req.SessionID, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// handleDeleteTemplate removes a template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.service.DeleteTemplate(r.Context(), chi.URLParam(r, "target"), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
