package core

// validation.go checks inputs that arrive from outside the service: target
// definitions loaded from YAML, opened files and option patches.

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvimport/internal/csvparse"
)

// ValidationError represents a single problem with a target definition.
type ValidationError struct {
	Target  string // Target key, if known
	Field   string // Field name, if the problem is field-specific
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	switch {
	case e.Target != "" && e.Field != "":
		return fmt.Sprintf("invalid target %s: field %s: %s", e.Target, e.Field, e.Message)
	case e.Target != "":
		return fmt.Sprintf("invalid target %s: %s", e.Target, e.Message)
	default:
		return "invalid target: " + e.Message
	}
}

// ValidateTarget checks that a target has a key and uniquely named fields.
func ValidateTarget(t Target) error {
	if strings.TrimSpace(t.Key) == "" {
		return ValidationError{Message: "key is required"}
	}
	if len(t.Fields) == 0 {
		return ValidationError{Target: t.Key, Message: "at least one field is required"}
	}

	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return ValidationError{Target: t.Key, Field: fmt.Sprintf("#%d", i+1), Message: "name is required"}
		}
		if seen[f.Name] {
			return ValidationError{Target: t.Key, Field: f.Name, Message: "duplicate field name"}
		}
		seen[f.Name] = true
	}
	return nil
}

// validateOpen checks a file before any decoding work is done.
func (s *Service) validateOpen(req OpenRequest) (Target, error) {
	target, ok := Get(req.TargetKey)
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, req.TargetKey)
	}
	if err := s.checkSize(req); err != nil {
		return Target{}, err
	}
	return target, nil
}

// checkSize rejects empty files and files over the configured limit.
func (s *Service) checkSize(req OpenRequest) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("%s: %w", req.FileName, ErrEmptyFile)
	}
	if s.cfg.MaxFileSize > 0 && int64(len(req.Data)) > s.cfg.MaxFileSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds limit of %d", req.FileName, ErrFileTooLarge, len(req.Data), s.cfg.MaxFileSize)
	}
	return nil
}

// applyPatch returns opts with patch applied. The second result reports
// whether the delimiter should be detected rather than taken from opts.
func applyPatch(opts csvparse.Options, detect bool, patch OptionsPatch) (csvparse.Options, bool, error) {
	if patch.HasHeaders != nil {
		opts.HasHeaders = *patch.HasHeaders
	}
	if patch.TrimFields != nil {
		opts.TrimFields = *patch.TrimFields
	}
	if patch.SkipEmptyLines != nil {
		opts.SkipEmptyLines = *patch.SkipEmptyLines
	}

	if patch.Delimiter != nil {
		d := *patch.Delimiter
		switch {
		case d == "" || strings.EqualFold(d, "auto"):
			detect = true
		case d == `\t`:
			opts.Delimiter = '\t'
			detect = false
		case utf8.RuneCountInString(d) == 1:
			r, _ := utf8.DecodeRuneInString(d)
			opts.Delimiter = r
			detect = false
		default:
			return opts, detect, fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalidOptions, d)
		}
	}

	if !detect {
		if err := opts.Validate(); err != nil {
			return opts, detect, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return opts, detect, nil
}
