package guardrail

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d[\d\s().-]{7,}\d)`)
)

// RedactPII substitutes email addresses and phone-like digit runs.
// The substitution is unconditional pattern replacement, not detection.
func RedactPII(text string) string {
	redacted := emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	return phonePattern.ReplaceAllString(redacted, "[REDACTED_PHONE]")
}

// NormalizeHost extracts the comparable hostname of a source URL:
// lower-cased, leading "www." stripped. ok is false for URLs without a
// parseable host.
func NormalizeHost(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}
	host = strings.TrimPrefix(host, "www.")
	return host, true
}

func normalizeHostSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}
