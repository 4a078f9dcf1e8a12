// Package sanitize strips markup and dangerous protocol prefixes from user
// supplied text and file names before they are stored or displayed.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxTextLength is the rune limit applied by Text.
const MaxTextLength = 1000

// MaxFileNameLength is the limit applied by FileName.
const MaxFileNameLength = 255

var (
	protocolPattern = regexp.MustCompile(`(?i)javascript:|data:|vbscript:`)
	fileNameUnsafe  = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	dotRuns         = regexp.MustCompile(`\.{2,}`)
	sensitiveWords  = regexp.MustCompile(`(?i)password|token|key|secret`)

	strictPolicy = bluemonday.StrictPolicy()
)

// Text trims s, removes angle brackets and script-capable protocol prefixes,
// and truncates it to MaxTextLength runes. Text(Text(s)) == Text(s).
func Text(s string) string {
	for {
		next := strings.TrimSpace(s)
		next = strings.NewReplacer("<", "", ">", "").Replace(next)
		next = protocolPattern.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}

	if r := []rune(s); len(r) > MaxTextLength {
		s = strings.TrimSpace(string(r[:MaxTextLength]))
	}
	return s
}

// FileName replaces anything outside [a-zA-Z0-9.-] with '_', collapses runs
// of dots and truncates to MaxFileNameLength.
func FileName(name string) string {
	name = fileNameUnsafe.ReplaceAllString(name, "_")
	name = dotRuns.ReplaceAllString(name, ".")
	if len(name) > MaxFileNameLength {
		name = name[:MaxFileNameLength]
	}
	return name
}

// ErrorMessage renders err for display: markup is stripped and words that
// hint at credentials are redacted.
func ErrorMessage(err error) string {
	if err == nil {
		return "An error occurred. Please try again."
	}
	msg := sensitiveWords.ReplaceAllString(err.Error(), "[REDACTED]")
	msg = strings.TrimSpace(strictPolicy.Sanitize(msg))
	if msg == "" {
		return "An error occurred. Please try again."
	}
	return msg
}
