// Package csvparse tokenizes delimited text into header-keyed rows.
//
// The parser is a single-pass state machine over decoded text. It never
// fails: structural problems such as a row with the wrong number of fields
// are reported as human-readable strings in Result.Errors and the row is
// padded or truncated to fit the header.
package csvparse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// EmptyContent is the single error reported when the input has no rows.
const EmptyContent = "Empty CSV content"

// Options controls a single Parse call.
type Options struct {
	HasHeaders     bool `json:"hasHeaders"`
	Delimiter      rune `json:"delimiter"`
	TrimFields     bool `json:"trimFields"`
	SkipEmptyLines bool `json:"skipEmptyLines"`
}

// DefaultOptions returns the options used for a freshly loaded file.
func DefaultOptions() Options {
	return Options{
		HasHeaders:     true,
		Delimiter:      ',',
		TrimFields:     true,
		SkipEmptyLines: true,
	}
}

// Validate reports whether the options can be used to parse.
func (o Options) Validate() error {
	switch o.Delimiter {
	case 0:
		return fmt.Errorf("delimiter is required")
	case '"', '\r', '\n':
		return fmt.Errorf("delimiter %q cannot be used", o.Delimiter)
	case utf8.RuneError:
		return fmt.Errorf("delimiter is not a valid character")
	}
	return nil
}

// Row maps header names to field values. A Row always has exactly one entry
// per distinct header.
type Row map[string]string

// Result is the outcome of Parse. It is a fresh value on every call.
type Result struct {
	Data    []Row    `json:"data"`
	Headers []string `json:"headers"`
	Errors  []string `json:"errors"`
}

// Preview returns at most n data rows.
func (r Result) Preview(n int) []Row {
	if n < 0 || n >= len(r.Data) {
		return r.Data
	}
	return r.Data[:n]
}

// Parse converts text into rows using opts.
//
// Quoted fields may contain the delimiter, CR/LF and doubled quotes; a row
// ends at LF or CRLF outside quotes. A leading U+FEFF is dropped.
func Parse(text string, opts Options) Result {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	text = strings.TrimPrefix(text, "\uFEFF")

	lines := tokenize(text, opts)
	if len(lines) == 0 {
		return Result{
			Data:    []Row{},
			Headers: []string{},
			Errors:  []string{EmptyContent},
		}
	}

	var headers []string
	if opts.HasHeaders {
		headers = lines[0]
		lines = lines[1:]
	} else {
		headers = syntheticHeaders(len(lines[0]))
	}

	res := Result{
		Data:    make([]Row, 0, len(lines)),
		Headers: headers,
		Errors:  []string{},
	}

	for i, fields := range lines {
		if len(fields) != len(headers) {
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d has %d fields, expected %d", i+1, len(fields), len(headers)))
		}
		res.Data = append(res.Data, makeRow(headers, fields))
	}

	return res
}

// makeRow zips headers with fields, truncating extra fields and filling
// missing ones with "".
func makeRow(headers, fields []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if i < len(fields) {
			row[h] = fields[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func syntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("Column %d", i+1)
	}
	return headers
}

// tokenize splits text into lines of fields.
func tokenize(text string, opts Options) [][]string {
	var (
		lines    [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	closeField := func() {
		v := field.String()
		if opts.TrimFields {
			v = strings.TrimSpace(v)
		}
		row = append(row, v)
		field.Reset()
	}
	commitRow := func() {
		if !opts.SkipEmptyLines || hasContent(row) {
			lines = append(lines, row)
		}
		row = nil
	}

	for i := 0; i < len(text); {
		c, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case c == '"' && !inQuotes:
			inQuotes = true
		case c == '"' && inQuotes:
			if i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i += 2
				continue
			}
			inQuotes = false
		case c == opts.Delimiter && !inQuotes:
			closeField()
		case c == '\n' && !inQuotes:
			closeField()
			commitRow()
		case c == '\r' && !inQuotes && i+1 < len(text) && text[i+1] == '\n':
			closeField()
			commitRow()
			i += 2
			continue
		default:
			field.WriteString(text[i : i+size])
		}
		i += size
	}

	if field.Len() > 0 || len(row) > 0 {
		closeField()
		commitRow()
	}

	return lines
}

func hasContent(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return true
		}
	}
	return false
}
