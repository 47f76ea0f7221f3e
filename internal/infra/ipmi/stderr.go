package ipmi

import (
	"regexp"
	"strings"
)

// ipmitool emits cipher-suite discovery noise on stderr even when the
// requested operation succeeds. These lines must not fail a command.
var benignPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Unable to Get Channel Cipher Suites\s*`),
	regexp.MustCompile(`(?i)Get Channel Cipher Suites command failed[^\n]*\n?`),
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// CleanStderr strips known-benign diagnostic lines from IPMI stderr,
// collapses the resulting blank lines and trims the output.
func CleanStderr(stderr string) string {
	if stderr == "" {
		return stderr
	}
	cleaned := stderr
	for _, p := range benignPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = blankLines.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}

// HasRealErrors reports whether stderr still carries content after
// benign filtering.
func HasRealErrors(stderr string) bool {
	return CleanStderr(stderr) != ""
}
