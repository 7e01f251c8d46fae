package csvparse

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// fromAlphabet generates strings built from the given fragments.
func fromAlphabet(fragments ...string) gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(fragments)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(fragments[i])
		}
		return b.String()
	})
}

// TestQuotedFieldContainment checks that anything inside quotes, including
// delimiters, CR/LF and quotes, comes back verbatim in a single field.
func TestQuotedFieldContainment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	opts := Options{HasHeaders: true, Delimiter: ','}
	fieldGen := gen.OneGenOf(
		gen.AnyString(),
		fromAlphabet(",", "\n", "\r\n", `"`, ";", "x", " "),
	)

	properties.Property("quoted values survive parsing unchanged", prop.ForAll(
		func(a, b string) bool {
			input := "first,second\n" + quote(a) + "," + quote(b)
			res := Parse(input, opts)

			return len(res.Data) == 1 &&
				len(res.Errors) == 0 &&
				res.Data[0]["first"] == a &&
				res.Data[0]["second"] == b
		},
		fieldGen,
		fieldGen,
	))

	properties.TestingRun(t)
}

// TestRowShape checks that every row carries exactly one value per header no
// matter how malformed the input is.
func TestRowShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	inputGen := fromAlphabet("a", "b", ",", ";", "\n", "\r", `"`, " ", "é")

	properties.Property("rows match headers", prop.ForAll(
		func(input string, hasHeaders, trim, skip bool) bool {
			res := Parse(input, Options{HasHeaders: hasHeaders, Delimiter: ',', TrimFields: trim, SkipEmptyLines: skip})

			if len(res.Headers) == 0 {
				return len(res.Data) == 0 && len(res.Errors) == 1 && res.Errors[0] == EmptyContent
			}

			distinct := make(map[string]bool, len(res.Headers))
			for _, h := range res.Headers {
				distinct[h] = true
			}
			for _, row := range res.Data {
				if len(row) != len(distinct) {
					return false
				}
				for h := range distinct {
					if _, ok := row[h]; !ok {
						return false
					}
				}
			}
			return len(res.Errors) <= len(res.Data)
		},
		inputGen,
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
