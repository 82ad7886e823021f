package discovery

import (
	"regexp"
	"strings"

	"github.com/pevans/govdigest/scraper"
)

// Whitespace includes Unicode spaces such as the ideographic space U+3000
// and the no-break space common on these sites.
var (
	blankLines = regexp.MustCompile(`\n[\s\v\p{Z}\x{85}]*\n`)
	spaceRuns  = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)
)

// NormalizeWhitespace applies the adapter's whitespace mode. In collapse
// mode runs of blank lines shrink to one blank line and then every
// whitespace run becomes a single space. In strip mode all whitespace is
// removed. Both are fixed points: normalizing twice changes nothing.
func NormalizeWhitespace(text, mode string) string {
	if mode == scraper.WhitespaceStrip {
		return spaceRuns.ReplaceAllString(text, "")
	}
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ApplyCleanup runs the rules in order.
func ApplyCleanup(text string, rules []scraper.CleanupRule) string {
	for _, r := range rules {
		text = r.Apply(text)
	}
	return text
}

// Clean normalizes text and applies the cleanup rules, then normalizes
// again so a removed span never leaves doubled spaces behind.
func Clean(text, mode string, rules []scraper.CleanupRule) string {
	text = NormalizeWhitespace(text, mode)
	if len(rules) == 0 {
		return text
	}
	return NormalizeWhitespace(ApplyCleanup(text, rules), mode)
}
