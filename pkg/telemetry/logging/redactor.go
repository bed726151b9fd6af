package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log output.
type Redactor struct {
	patterns      []redactPattern
	sensitiveKeys map[string]struct{}
}

type redactPattern struct {
	regex   *regexp.Regexp
	replace func(string) string
}

var defaultSensitiveKeys = []string{
	"api_key",
	"apikey",
	"key",
	"authorization",
	"password",
	"token",
	"x-goog-api-key",
	"x-api-key",
}

// NewRedactor creates a Redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	r := &Redactor{
		sensitiveKeys: make(map[string]struct{}, len(defaultSensitiveKeys)),
	}
	for _, k := range defaultSensitiveKeys {
		r.sensitiveKeys[k] = struct{}{}
	}

	r.patterns = []redactPattern{
		// Google-style API keys.
		{regex: regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), replace: RedactAPIKey},
		{regex: regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), replace: func(string) string { return "Bearer ***" }},
		// key= in URLs and query strings.
		{
			regex: regexp.MustCompile(`([?&]key=)[^&\s"]+`),
			replace: func(m string) string {
				return m[:strings.Index(m, "=")+1] + "***"
			},
		},
	}
	return r
}

// RedactString masks every credential pattern found in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replace)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Values under
// sensitive keys are shortened to a prefix; other strings are pattern
// scanned.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	_, sensitive := r.sensitiveKeys[strings.ToLower(a.Key)]

	switch a.Value.Kind() {
	case slog.KindString:
		if sensitive {
			return slog.String(a.Key, RedactAPIKey(a.Value.String()))
		}
		if s := a.Value.String(); s != "" {
			if redacted := r.RedactString(s); redacted != s {
				return slog.String(a.Key, redacted)
			}
		}
	case slog.KindGroup:
	default:
		if sensitive {
			return slog.String(a.Key, "***")
		}
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}

	// Keep first 4 characters for identification
	return apiKey[:4] + "***"
}
