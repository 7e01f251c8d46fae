// Package charset detects and decodes the character encoding of uploaded CSV
// files.
//
// Detection is deliberately simple: a byte-order mark wins outright, then a
// structural UTF-8 scan decides between UTF-8 and Windows-1252. Decoding is
// delegated to golang.org/x/text and only the encodings listed here are
// accepted; anything else fails with ErrUnsupportedEncoding.
package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding identifies a text encoding by its WHATWG-style lowercase label.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	ISO88591    Encoding = "iso-8859-1"
	Windows1252 Encoding = "windows-1252"
	ISO885915   Encoding = "iso-8859-15"
	MacRoman    Encoding = "macintosh"
	Windows1251 Encoding = "windows-1251"
	ISO88592    Encoding = "iso-8859-2"
	ISO88595    Encoding = "iso-8859-5"

	// Only reachable through BOM detection; not offered in the selector.
	UTF16LE Encoding = "utf-16le"
	UTF16BE Encoding = "utf-16be"
	UTF32LE Encoding = "utf-32le"
	UTF32BE Encoding = "utf-32be"
)

// ErrUnsupportedEncoding is returned when asked to decode with an encoding
// that is not in the supported set.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Option is one entry of the encoding selector.
type Option struct {
	Value Encoding `json:"value"`
	Label string   `json:"label"`
}

var supported = []Option{
	{Value: UTF8, Label: "UTF-8"},
	{Value: ISO88591, Label: "ISO-8859-1 (Latin-1)"},
	{Value: Windows1252, Label: "Windows-1252 (Western European)"},
	{Value: ISO885915, Label: "ISO-8859-15 (Latin-9)"},
	{Value: MacRoman, Label: "Mac Roman"},
	{Value: Windows1251, Label: "Windows-1251 (Cyrillic)"},
	{Value: ISO88592, Label: "ISO-8859-2 (Central European)"},
	{Value: ISO88595, Label: "ISO-8859-5 (Cyrillic)"},
}

// Supported returns the encodings a user may pick from, in display order.
// The returned slice is a copy.
func Supported() []Option {
	out := make([]Option, len(supported))
	copy(out, supported)
	return out
}

// codecs maps every decodable Encoding to its x/text implementation.
var codecs = map[Encoding]encoding.Encoding{
	UTF8:        unicode.UTF8BOM,
	ISO88591:    charmap.ISO8859_1,
	Windows1252: charmap.Windows1252,
	ISO885915:   charmap.ISO8859_15,
	MacRoman:    charmap.Macintosh,
	Windows1251: charmap.Windows1251,
	ISO88592:    charmap.ISO8859_2,
	ISO88595:    charmap.ISO8859_5,
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	UTF32LE:     utf32.UTF32(utf32.LittleEndian, utf32.UseBOM),
	UTF32BE:     utf32.UTF32(utf32.BigEndian, utf32.UseBOM),
}

// aliases accepts the spellings users and browsers commonly send.
var aliases = map[string]Encoding{
	"utf8":        UTF8,
	"latin1":      ISO88591,
	"latin-1":     ISO88591,
	"l1":          ISO88591,
	"iso8859-1":   ISO88591,
	"iso88591":    ISO88591,
	"cp1252":      Windows1252,
	"win1252":     Windows1252,
	"x-cp1252":    Windows1252,
	"latin9":      ISO885915,
	"latin-9":     ISO885915,
	"iso8859-15":  ISO885915,
	"mac":         MacRoman,
	"macroman":    MacRoman,
	"mac-roman":   MacRoman,
	"x-mac-roman": MacRoman,
	"cp1251":      Windows1251,
	"win1251":     Windows1251,
	"latin2":      ISO88592,
	"latin-2":     ISO88592,
	"iso8859-2":   ISO88592,
	"cyrillic":    ISO88595,
	"iso8859-5":   ISO88595,
	"utf16le":     UTF16LE,
	"utf16be":     UTF16BE,
	"utf32le":     UTF32LE,
	"utf32be":     UTF32BE,
}

// Valid reports whether e can be used to decode.
func (e Encoding) Valid() bool {
	_, ok := codecs[e]
	return ok
}

// Label returns the display label for e, or the raw identifier when e is
// not one of the selector entries.
func (e Encoding) Label() string {
	for _, o := range supported {
		if o.Value == e {
			return o.Label
		}
	}
	return strings.ToUpper(string(e))
}

// Parse resolves a user-supplied label to a supported Encoding.
func Parse(label string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnsupportedEncoding)
	}
	if e := Encoding(key); e.Valid() {
		return e, nil
	}
	if e, ok := aliases[key]; ok {
		return e, nil
	}

	// Fall back to the IANA registry for the long tail of aliases
	// (e.g. "ISO_8859-1:1987", "csMacintosh").
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		for e, codec := range codecs {
			if codec == enc {
				return e, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, label)
}

// Decode converts buf to a UTF-8 string using enc.
//
// A byte-order mark matching enc is consumed. Bytes that are invalid under
// enc are replaced with U+FFFD rather than failing, matching how browsers
// decode uploads. An encoding outside the supported set is an error.
func Decode(buf []byte, enc Encoding) (string, error) {
	codec, ok := codecs[enc]
	if !ok {
		return "", fmt.Errorf("decode: %w: %q", ErrUnsupportedEncoding, string(enc))
	}

	out, err := codec.NewDecoder().Bytes(buf)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}
