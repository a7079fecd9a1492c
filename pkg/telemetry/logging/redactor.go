package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials and personal data in log fields. Rate limit
// keys are the main concern: callers often build them from API keys,
// account emails, or client addresses.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternEmail       = "email"
	PatternIPv4        = "ipv4"
	PatternPassword    = "password"
)

// Field names whose values are always masked.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "private_key",
}

// Field names carrying rate limit keys.
var limitKeyFields = map[string]bool{
	"key":       true,
	"rate_key":  true,
	"limit_key": true,
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	defs := []struct {
		name        string
		regex       string
		replacement string
	}{
		// Bearer first so the token is not matched as a bare API key.
		{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternAPIKey, `sk-[a-zA-Z0-9_\-]{4,}`, "sk-***"},
		{PatternEmail, `[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, "***@$1"},
		{PatternIPv4, `\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, "$1.*.*.*"},
		{PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1=***"},
	}

	r := &Redactor{patterns: make([]*redactPattern, 0, len(defs))}
	for _, d := range defs {
		r.patterns = append(r.patterns, &redactPattern{
			name:        d.name,
			regex:       regexp.MustCompile(d.regex),
			replacement: d.replacement,
		})
	}
	return r
}

// RedactString masks every pattern match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactKey masks a rate limit key. The namespace before the first colon
// is kept so operators can still tell key families apart.
func (r *Redactor) RedactKey(key string) string {
	prefix, rest, found := strings.Cut(key, ":")
	if !found {
		return r.maskOpaque(key)
	}
	return prefix + ":" + r.maskOpaque(rest)
}

func (r *Redactor) maskOpaque(value string) string {
	if redacted := r.RedactString(value); redacted != value {
		return redacted
	}
	return RedactAPIKey(value)
}

// RedactAttr redacts a single slog attribute, descending into groups.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindString:
		return slog.String(a.Key, r.redactValue(a.Key, v.String()).(string))
	default:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

func (r *Redactor) redactValue(key string, value any) any {
	lower := strings.ToLower(key)
	str, isString := value.(string)

	switch {
	case isSensitiveKey(lower):
		if isString {
			return RedactAPIKey(str)
		}
		return "***"
	case limitKeyFields[lower] && isString:
		return r.RedactKey(str)
	case isString:
		return r.RedactString(str)
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactAPIKey keeps the first four characters of a secret.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
