package discovery

import "unicode/utf8"

// Ellipsis marks a truncated digest.
const Ellipsis = "..."

// Assemble prefixes rawText with the province label, cutting it to maxChars
// characters first when it is longer. The cut is not word aware.
func Assemble(label, rawText string, maxChars int) string {
	if maxChars >= 0 && utf8.RuneCountInString(rawText) > maxChars {
		return label + string([]rune(rawText)[:maxChars]) + Ellipsis
	}
	return label + rawText
}
