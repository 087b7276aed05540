package secrets

import (
	"regexp"
	"strings"
)

// Redactor removes credentials from text that is about to leave the process,
// such as provider error messages shown on the dashboard
type Redactor struct {
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor creates a new redactor with default sensitive patterns
func NewRedactor() *Redactor {
	defaultPatterns := []string{
		`AIza[0-9A-Za-z\-_]{35}`, // Google API key
		`(?i)([?&](?:key|api_key|access_token)=)[^&\s"']+`,
		`(?i)(x-goog-api-key["\s]*[:=]["\s]*)[^\s"',}]+`,
		`(?i)(bearer\s+)[a-zA-Z0-9\-\._~\+/]+=*`,
	}

	patterns := make([]*regexp.Regexp, len(defaultPatterns))
	for i, pattern := range defaultPatterns {
		patterns[i] = regexp.MustCompile(pattern)
	}

	return &Redactor{
		patterns:    patterns,
		replacement: "[REDACTED]",
	}
}

// RedactString redacts sensitive data from a string
func (r *Redactor) RedactString(input string) string {
	result := input
	for _, pattern := range r.patterns {
		if pattern.NumSubexp() > 0 {
			// keep the parameter or header name, drop the value
			result = pattern.ReplaceAllString(result, "${1}"+r.replacement)
			continue
		}
		result = pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// RedactSecret removes every literal occurrence of the given secret values, then applies the patterns
func (r *Redactor) RedactSecret(input string, values ...string) string {
	for _, v := range values {
		if v == "" {
			continue
		}
		input = strings.ReplaceAll(input, v, r.replacement)
	}
	return r.RedactString(input)
}
