// Package mapping associates target fields with source CSV columns.
//
// A Mapping is a plain value. Every operation returns a new Mapping and
// leaves its input untouched, so callers decide when to store the result.
package mapping

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvimport/internal/csvparse"
)

// Field describes one destination field of an import.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// DisplayLabel returns the label shown to users, falling back to the name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Mapping maps a field name to the header it reads from. An empty header
// means the field is unmapped.
type Mapping map[string]string

// Clone returns an independent copy of m. A nil mapping clones to an empty one.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Header returns the header mapped to field, or "".
func (m Mapping) Header(field string) string {
	return m[field]
}

// Options tunes AutoMatch.
type Options struct {
	// IgnoreCase makes the exact pass compare headers case-insensitively.
	IgnoreCase bool `json:"ignoreCase"`
	// Containment enables the substring fallback for fields the exact pass
	// could not place.
	Containment bool `json:"containment"`
}

// AutoMatch fills unmapped fields from headers and returns the new mapping.
//
// Fields that already have a non-empty entry in existing keep it. For every
// other field the first header equal to the field's name or label wins. When
// opts.Containment is set, a field that still has no match takes the first
// non-blank header that contains, or is contained in, its label or name,
// ignoring case.
func AutoMatch(headers []string, fields []Field, existing Mapping, opts Options) Mapping {
	out := existing.Clone()

	for _, f := range fields {
		if out[f.Name] != "" {
			continue
		}
		if h, ok := exactMatch(headers, f, opts.IgnoreCase); ok {
			out[f.Name] = h
			continue
		}
		if opts.Containment {
			if h, ok := containsMatch(headers, f); ok {
				out[f.Name] = h
				continue
			}
		}
		out[f.Name] = ""
	}

	return out
}

func exactMatch(headers []string, f Field, ignoreCase bool) (string, bool) {
	eq := func(a, b string) bool { return a == b }
	if ignoreCase {
		eq = strings.EqualFold
	}

	label := f.DisplayLabel()
	for _, h := range headers {
		if eq(h, f.Name) || eq(h, label) {
			return h, true
		}
	}
	return "", false
}

func containsMatch(headers []string, f Field) (string, bool) {
	needles := []string{strings.ToLower(f.DisplayLabel())}
	if name := strings.ToLower(f.Name); name != needles[0] {
		needles = append(needles, name)
	}

	for _, h := range headers {
		hay := strings.ToLower(strings.TrimSpace(h))
		if hay == "" {
			continue
		}
		for _, n := range needles {
			if n == "" {
				continue
			}
			if strings.Contains(hay, n) || strings.Contains(n, hay) {
				return h, true
			}
		}
	}
	return "", false
}

// MapField records an explicit user choice. An empty header unmaps field.
func MapField(m Mapping, field, header string) Mapping {
	out := m.Clone()
	out[field] = header
	return out
}

// Prune clears entries whose header is no longer among headers.
func Prune(m Mapping, headers []string) Mapping {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	out := m.Clone()
	for field, h := range out {
		if h != "" && !present[h] {
			out[field] = ""
		}
	}
	return out
}

// Reset returns a mapping with every field present and unmapped.
func Reset(fields []Field) Mapping {
	out := make(Mapping, len(fields))
	for _, f := range fields {
		out[f.Name] = ""
	}
	return out
}

// Record is one processed row keyed by field name.
type Record map[string]string

// Apply projects rows onto fields through m. Unmapped fields and headers
// missing from a row produce "".
func Apply(rows []csvparse.Row, fields []Field, m Mapping) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(fields))
		for _, f := range fields {
			if h := m[f.Name]; h != "" {
				rec[f.Name] = row[h]
			} else {
				rec[f.Name] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// IssueKind classifies a mapping problem.
type IssueKind string

const (
	IssueRequiredUnmapped IssueKind = "required_unmapped"
	IssueUnknownHeader    IssueKind = "unknown_header"
	IssueDuplicateHeader  IssueKind = "duplicate_header"
)

// Issue is one problem found by Validate.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Field   string    `json:"field"`
	Header  string    `json:"header,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string { return i.Message }

// Validate reports problems with m, in field order.
//
// A required field without a header, a header that is not in headers and a
// header used by more than one field are each reported once per field.
func Validate(headers []string, fields []Field, m Mapping) []Issue {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	owner := make(map[string]string)
	var issues []Issue

	for _, f := range fields {
		h := m[f.Name]
		if h == "" {
			if f.Required {
				issues = append(issues, Issue{
					Kind:    IssueRequiredUnmapped,
					Field:   f.Name,
					Message: fmt.Sprintf("Required field %q is not mapped", f.DisplayLabel()),
				})
			}
			continue
		}

		if !present[h] {
			issues = append(issues, Issue{
				Kind:    IssueUnknownHeader,
				Field:   f.Name,
				Header:  h,
				Message: fmt.Sprintf("Field %q is mapped to missing column %q", f.DisplayLabel(), h),
			})
			continue
		}

		if prev, ok := owner[h]; ok {
			issues = append(issues, Issue{
				Kind:    IssueDuplicateHeader,
				Field:   f.Name,
				Header:  h,
				Message: fmt.Sprintf("Column %q is mapped to both %q and %q", h, prev, f.DisplayLabel()),
			})
			continue
		}
		owner[h] = f.DisplayLabel()
	}

	return issues
}

// HasRequiredGaps reports whether any required field is unmapped.
func HasRequiredGaps(issues []Issue) bool {
	for _, i := range issues {
		if i.Kind == IssueRequiredUnmapped {
			return true
		}
	}
	return false
}
