package web

// handlers_common.go holds request decoding helpers and the read-only
// reference data endpoints.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/csvimport/internal/charset"
	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/csvparse"
)

// maxJSONBody bounds small JSON request bodies.
const maxJSONBody = 64 << 10

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and the other form fields.
const multipartOverhead = 1 << 20

// decodeJSON reads a small JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// parseUploadForm limits the body to maxFiles files of the configured size
// and parses the multipart form.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request, maxFiles int) error {
	limit := s.cfg.Import.MaxFileSize*int64(maxFiles) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: %w", core.ErrFileTooLarge, err)
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// readPart reads one uploaded file. The service checks size and emptiness.
func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports session and limiter state for monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.service.SessionCount(),
		"limiter":  s.service.Limiter().Status(),
	})
}

// handleListEncodings returns the encodings a session can be switched to.
func (s *Server) handleListEncodings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, charset.Supported())
}

// handleListDelimiters returns the delimiters offered in the options form.
func (s *Server) handleListDelimiters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, csvparse.Delimiters())
}

// handleListTargets returns all import targets and their fields.
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Targets())
}
