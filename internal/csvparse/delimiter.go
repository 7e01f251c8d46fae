package csvparse

import "strings"

// sampleLines is how many leading lines DetectDelimiter looks at.
const sampleLines = 5

// DelimiterOption is one entry of the delimiter selector.
type DelimiterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// candidates are checked in this order; earlier entries win ties.
var candidates = []struct {
	r     rune
	label string
}{
	{',', "Comma (,)"},
	{';', "Semicolon (;)"},
	{'\t', "Tab"},
	{'|', "Pipe (|)"},
}

// Delimiters returns the delimiters DetectDelimiter chooses between, in
// tie-break order.
func Delimiters() []DelimiterOption {
	out := make([]DelimiterOption, len(candidates))
	for i, c := range candidates {
		out[i] = DelimiterOption{Value: string(c.r), Label: c.label}
	}
	return out
}

// DetectDelimiter guesses the field delimiter from the first lines of text.
//
// It counts raw occurrences of each candidate, quoted or not, and returns the
// one with the strictly highest count. Ties go to the earlier candidate, so
// comma wins whenever it is involved; text with no candidates yields comma.
func DetectDelimiter(sample string) rune {
	lines := strings.SplitN(sample, "\n", sampleLines+1)
	if len(lines) > sampleLines {
		lines = lines[:sampleLines]
	}
	head := strings.Join(lines, "\n")

	best := candidates[0].r
	bestCount := 0
	for _, c := range candidates {
		if n := strings.Count(head, string(c.r)); n > bestCount {
			best, bestCount = c.r, n
		}
	}
	return best
}
