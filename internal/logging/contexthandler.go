package logging

import (
	"context"
	"log/slog"
)

// ContextProvider supplies attributes sampled at log time. The sim runner
// uses one to stamp every record with the current run ID and tick.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and appends provider attributes to
// each record it forwards.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler attaches a provider to inner. A nil provider forwards
// records unchanged.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(); len(attrs) > 0 {
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}
