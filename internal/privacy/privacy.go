// Package privacy excludes and redacts sensitive content before it ever
// reaches the memory store. Adapted from contextgate's scrubber
// interceptor (internal/proxy/scrubber_interceptor.go), generalized from
// scrubbing proxied JSON payloads to scrubbing tool-call content and
// file paths captured off the hook stream.
package privacy

import "regexp"

// excludedPathPatterns are file-path fragments that mean the whole tool
// call is dropped rather than redacted: a diff against a credentials
// file is still a credentials file, no matter how the secret inside it
// is shaped.
var excludedPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.env(\.[a-z]+)?$`),
	regexp.MustCompile(`(?i)credentials`),
	regexp.MustCompile(`(?i)secrets?\.`),
	regexp.MustCompile(`\.pem$`),
	regexp.MustCompile(`\.key$`),
	regexp.MustCompile(`id_rsa`),
}

// IsExcludedPath reports whether a file path should exclude its tool
// call from capture entirely.
func IsExcludedPath(path string) bool {
	for _, re := range excludedPathPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// redactionRule is one labeled pattern applied, in order, to captured
// text. Order matters: the PEM block pattern must run before the
// generic key-shape patterns or a PEM body's base64 interior could
// partially match a narrower rule first and leave fragments unredacted.
type redactionRule struct {
	label string
	re    *regexp.Regexp
}

var redactionRules = []redactionRule{
	{"pem-block", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
	{"connection-string", regexp.MustCompile(`(?i)\b(postgres|postgresql|mysql|mongodb|redis|amqp)://[^\s"']+`)},
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)},
	{"aws-key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"env-assignment", regexp.MustCompile(`\b[A-Z][A-Z0-9_]{3,}\s*=\s*\S+`)},
}

// Redact scrubs known secret shapes from captured text, replacing each
// match with a "[REDACTED:label]" marker rather than deleting it, so
// the surrounding observation still reads coherently.
func Redact(text string) string {
	for _, rule := range redactionRules {
		text = rule.re.ReplaceAllString(text, "[REDACTED:"+rule.label+"]")
	}
	return text
}
