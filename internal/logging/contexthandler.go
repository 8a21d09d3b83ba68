package logging

import (
	"context"
	"log/slog"
)

// ContextProvider supplies attributes that change over the process
// lifetime, such as the active journal session or storage mode.
type ContextProvider func() []slog.Attr

// ContextHandler stamps provider attributes onto every record before
// passing it to the wrapped handler.
type ContextHandler struct {
	next  slog.Handler
	attrs ContextProvider
}

// NewContextHandler wraps next so that every record carries the
// provider's current attributes.
func NewContextHandler(next slog.Handler, attrs ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, attrs: attrs}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs != nil {
		r.AddAttrs(h.attrs()...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), attrs: h.attrs}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{next: h.next.WithGroup(name), attrs: h.attrs}
}
