package cleanup

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var quoteReplacements = map[rune]rune{
	'“': '"',
	'”': '"',
	'‘': '\'',
	'’': '\'',
	'«':      '"',
	'»':      '"',
	'„':      '"',
	'‚':      '\'',
}

// NormalizeText brings free text to a canonical form: NFC unicode
// normalization, unified quotes and dashes, collapsed whitespace.
// Hebrew niqqud attached to letters survives NFC unchanged, which is the
// point; only decomposed sequences are recomposed.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFC.String(text)

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if replacement, ok := quoteReplacements[r]; ok {
			builder.WriteRune(replacement)
		} else {
			builder.WriteRune(r)
		}
	}
	text = builder.String()

	text = strings.ReplaceAll(text, "—", "-")
	text = strings.ReplaceAll(text, "–", "-")
	text = strings.ReplaceAll(text, "−", "-")

	return strings.Join(strings.Fields(text), " ")
}
