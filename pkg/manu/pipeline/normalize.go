package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for comparison: accented characters are decomposed
// (NFD) and the combining diacritical mark range U+0300–U+036F is stripped.
// Unless keepCase is set the result is also lower-cased. Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string, keepCase bool) string {
	if text == "" {
		return ""
	}

	decomposed := norm.NFD.String(text)
	stripped := strings.Map(func(r rune) rune {
		if r >= 0x0300 && r <= 0x036f {
			return -1
		}
		return r
	}, decomposed)

	if keepCase {
		return stripped
	}
	return strings.ToLower(stripped)
}
