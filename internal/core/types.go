package core

import (
	"time"

	"github.com/JonMunkholm/csvimport/internal/charset"
	"github.com/JonMunkholm/csvimport/internal/csvparse"
	"github.com/JonMunkholm/csvimport/internal/mapping"
)

// Target is a named import destination and the fields it expects.
type Target struct {
	Key         string          `json:"key" yaml:"key"`
	Label       string          `json:"label" yaml:"label"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []mapping.Field `json:"fields" yaml:"fields"`
}

// Field returns the field definition named name.
func (t Target) Field(name string) (mapping.Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return mapping.Field{}, false
}

// OpenRequest carries a freshly read file into the service.
type OpenRequest struct {
	TargetKey string
	FileName  string
	Data      []byte
}

// ParseSettings is the wire form of csvparse.Options. The delimiter is a
// one-character string so it survives JSON unchanged.
type ParseSettings struct {
	HasHeaders        bool   `json:"hasHeaders"`
	Delimiter         string `json:"delimiter"`
	DelimiterDetected bool   `json:"delimiterDetected"`
	TrimFields        bool   `json:"trimFields"`
	SkipEmptyLines    bool   `json:"skipEmptyLines"`
}

func settingsFrom(opts csvparse.Options, detected bool) ParseSettings {
	return ParseSettings{
		HasHeaders:        opts.HasHeaders,
		Delimiter:         string(opts.Delimiter),
		DelimiterDetected: detected,
		TrimFields:        opts.TrimFields,
		SkipEmptyLines:    opts.SkipEmptyLines,
	}
}

// OptionsPatch changes some parse options of a session. Nil fields are left
// as they are. A Delimiter of "" or "auto" returns to detection.
type OptionsPatch struct {
	HasHeaders     *bool   `json:"hasHeaders,omitempty"`
	Delimiter      *string `json:"delimiter,omitempty"`
	TrimFields     *bool   `json:"trimFields,omitempty"`
	SkipEmptyLines *bool   `json:"skipEmptyLines,omitempty"`
}

// EncodingInfo describes how the session's bytes are being decoded.
type EncodingInfo struct {
	Current  charset.Encoding `json:"current"`
	Detected charset.Encoding `json:"detected"`
	Hint     charset.Encoding `json:"hint,omitempty"`
	BOM      bool             `json:"bom"`
	Chosen   bool             `json:"chosen"`
}

// Snapshot is a read-only view of a session for the presentation layer.
type Snapshot struct {
	ID        string           `json:"id"`
	TargetKey string           `json:"target"`
	FileName  string           `json:"fileName"`
	Size      int              `json:"size"`
	Encoding  EncodingInfo     `json:"encoding"`
	Options   ParseSettings    `json:"options"`
	Headers   []string         `json:"headers"`
	Preview   []csvparse.Row   `json:"preview"`
	TotalRows int              `json:"totalRows"`
	Errors    []string         `json:"errors"`
	Mapping   mapping.Mapping  `json:"mapping"`
	Issues    []mapping.Issue  `json:"issues"`
	Ready     bool             `json:"ready"`
	Template  *AppliedTemplate `json:"template,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// AppliedTemplate records which saved template seeded a session's mapping.
type AppliedTemplate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ImportTemplate is a saved mapping for files with similar headers.
type ImportTemplate struct {
	ID        string          `json:"id"`
	TargetKey string          `json:"target"`
	Name      string          `json:"name"`
	Mapping   mapping.Mapping `json:"mapping"`
	Headers   []string        `json:"headers"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TemplateMatch pairs a template with how well its headers fit a file.
type TemplateMatch struct {
	Template ImportTemplate `json:"template"`
	Score    float64        `json:"score"`
}

// FileAnalysis is the outcome of analyzing one file without opening a session.
type FileAnalysis struct {
	FileName  string          `json:"fileName"`
	Size      int             `json:"size"`
	Encoding  EncodingInfo    `json:"encoding"`
	Delimiter string          `json:"delimiter"`
	Headers   []string        `json:"headers"`
	TotalRows int             `json:"totalRows"`
	Errors    []string        `json:"errors"`
	Mapping   mapping.Mapping `json:"mapping,omitempty"`
	Issues    []mapping.Issue `json:"issues,omitempty"`
	Error     string          `json:"error,omitempty"`
}
