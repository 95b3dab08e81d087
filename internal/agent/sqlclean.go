package agent

import (
	"regexp"
	"strings"
)

var (
	openFenceRe  = regexp.MustCompile("(?i)^```(?:sql)?[ \t]*\n?")
	closeFenceRe = regexp.MustCompile("\n?```[ \t]*$")
)

// CleanSQL normalizes raw generator output into a bare SQL string: markdown
// fences, surrounding whitespace and trailing terminators are stripped. The
// result is still untrusted until validated.
func CleanSQL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = openFenceRe.ReplaceAllString(cleaned, "")
	cleaned = closeFenceRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, ";")
	return strings.TrimSpace(cleaned)
}
