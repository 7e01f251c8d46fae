package charset

import "github.com/saintfish/chardet"

// hintSampleSize bounds how much of the buffer the statistical detector sees.
const hintSampleSize = 64 * 1024

// bom is a byte-order-mark pattern. Order matters: the UTF-32LE mark
// FF FE 00 00 must be tried before the UTF-16LE mark FF FE it starts with.
type bom struct {
	prefix []byte
	enc    Encoding
}

var boms = []bom{
	{prefix: []byte{0xEF, 0xBB, 0xBF}, enc: UTF8},
	{prefix: []byte{0xFF, 0xFE, 0x00, 0x00}, enc: UTF32LE},
	{prefix: []byte{0xFF, 0xFE}, enc: UTF16LE},
	{prefix: []byte{0x00, 0x00, 0xFE, 0xFF}, enc: UTF32BE},
	{prefix: []byte{0xFE, 0xFF}, enc: UTF16BE},
}

// DetectBOM checks the first bytes of buf for a byte-order mark. It returns
// the encoding and the length of the mark when one is found.
func DetectBOM(buf []byte) (Encoding, int, bool) {
	for _, b := range boms {
		if hasPrefix(buf, b.prefix) {
			return b.enc, len(b.prefix), true
		}
	}
	return "", 0, false
}

// Detect returns the best-guess encoding for buf.
//
// A byte-order mark decides immediately. Otherwise buf is reported as UTF-8
// only if it contains at least one non-ASCII byte and every multi-byte
// sequence is well formed; everything else, including empty and pure ASCII
// input, falls back to Windows-1252.
func Detect(buf []byte) Encoding {
	if enc, _, ok := DetectBOM(buf); ok {
		return enc
	}
	if looksUTF8(buf) {
		return UTF8
	}
	return Windows1252
}

// looksUTF8 reports whether buf has high bytes and all of them form valid
// UTF-8 lead/continuation sequences. Overlong forms and surrogates are not
// rejected; only the lead/continuation structure is checked.
func looksUTF8(buf []byte) bool {
	high := false
	for i := 0; i < len(buf); {
		b := buf[i]
		if b < 0x80 {
			i++
			continue
		}
		high = true

		n := continuationBytes(b)
		if n == 0 {
			return false
		}
		if i+n >= len(buf) {
			return false
		}
		for j := 1; j <= n; j++ {
			if buf[i+j]&0xC0 != 0x80 {
				return false
			}
		}
		i += n + 1
	}
	return high
}

// continuationBytes returns how many continuation bytes follow lead byte b,
// or 0 when b cannot start a multi-byte sequence.
func continuationBytes(b byte) int {
	switch {
	case b >= 0xC0 && b <= 0xDF:
		return 1
	case b >= 0xE0 && b <= 0xEF:
		return 2
	case b >= 0xF0 && b <= 0xF7:
		return 3
	default:
		return 0
	}
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// Report is the outcome of sniffing a buffer.
type Report struct {
	// Encoding is the result of Detect and is what callers should decode with.
	Encoding Encoding `json:"encoding"`
	// BOM is true when Encoding came from a byte-order mark.
	BOM bool `json:"bom"`
	// Hint is a statistical guess (e.g. "windows-1251") shown to users as a
	// suggestion when the structural result may be wrong. It never changes
	// Encoding.
	Hint       Encoding `json:"hint,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
}

// Sniff runs Detect and, for unlabeled input with high bytes, asks a
// statistical detector for a second opinion.
func Sniff(buf []byte) Report {
	if enc, _, ok := DetectBOM(buf); ok {
		return Report{Encoding: enc, BOM: true}
	}

	r := Report{Encoding: Detect(buf)}
	if !hasHighBytes(buf) {
		return r
	}

	sample := buf
	if len(sample) > hintSampleSize {
		sample = sample[:hintSampleSize]
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil {
		return r
	}
	if hint, err := Parse(res.Charset); err == nil {
		r.Hint = hint
		r.Confidence = res.Confidence
	}
	return r
}

func hasHighBytes(buf []byte) bool {
	for _, b := range buf {
		if b >= 0x80 {
			return true
		}
	}
	return false
}
