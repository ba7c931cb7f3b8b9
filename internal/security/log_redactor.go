// Package security keeps API keys and other credentials out of log output.
package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Placeholder substituted for anything that looks like a credential.
const Placeholder = "[REDACTED]"

// keyPatterns matches credential shapes that may leak into log text.
// The relay only talks to one provider, so the list is short and specific.
var keyPatterns = []*regexp.Regexp{
	// Anthropic keys: sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{16,}`),
	// Legacy sk- keys, in case an operator pastes one into a mode prompt
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// x-api-key headers dumped verbatim
	regexp.MustCompile(`(?i)x-api-key:\s*\S+`),
	// Bearer tokens
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]{16,}`),
}

// Redact replaces every credential-shaped substring with the placeholder.
func Redact(s string) string {
	out := s
	for _, pattern := range keyPatterns {
		out = pattern.ReplaceAllString(out, Placeholder)
	}
	return out
}

// RedactedHandler is an slog.Handler wrapper that scrubs credentials from
// every record before delegating to the inner handler. Installing it at
// logger construction means no call site can leak a key by accident.
type RedactedHandler struct {
	inner slog.Handler
}

// NewRedactedHandler wraps an existing handler with credential scrubbing.
func NewRedactedHandler(inner slog.Handler) *RedactedHandler {
	return &RedactedHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle scrubs the record's message and attributes, then delegates.
func (h *RedactedHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.Record{
		Time:    r.Time,
		Message: Redact(r.Message),
		Level:   r.Level,
		PC:      r.PC,
	}

	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})

	return h.inner.Handle(ctx, clean)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactedHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactedHandler) WithGroup(name string) slog.Handler {
	return &RedactedHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr scrubs one attribute. Attributes whose key names a credential
// are blanked entirely; string values are pattern-scrubbed.
func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(strings.ToLower(a.Key)) {
		return slog.String(a.Key, Placeholder)
	}

	switch v := a.Value.Any().(type) {
	case string:
		return slog.String(a.Key, Redact(v))
	case []string:
		redacted := make([]string, len(v))
		for i, s := range v {
			redacted[i] = Redact(s)
		}
		return slog.Any(a.Key, redacted)
	}

	return a
}

// isSensitiveKey reports whether an attribute key is known to carry a
// credential regardless of its value's shape.
func isSensitiveKey(key string) bool {
	for _, k := range []string{
		"api_key",
		"apikey",
		"api-key",
		"authorization",
		"secret",
		"token",
		"credential",
	} {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
