// ABOUTME: slog handler wrapper that masks credential-bearing attributes
// ABOUTME: Keeps passwords, session tokens, and signing secrets out of log output

package logging

import (
	"context"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password": {},
	"secret":   {},
	"token":    {},
	"session":  {},
}

// RedactingHandler replaces the value of any attribute whose key names a
// credential before passing the record on.
type RedactingHandler struct {
	inner slog.Handler
}

func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, redactAttr(a))
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(clean)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		nested := make([]slog.Attr, 0, len(group))
		for _, g := range group {
			nested = append(nested, redactAttr(g))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(nested...)}
	}

	return a
}
