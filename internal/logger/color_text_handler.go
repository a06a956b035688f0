package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// ColorTextHandler prefixes each line with the ANSI-colored level name and
// delegates the rest of the record to slog.TextHandler. The prefix is
// written straight to the writer, not through the record: TextHandler
// quotes message text, which would escape the ESC bytes and defeat the
// color. Intended for interactive terminals only.
type ColorTextHandler struct {
	inner slog.Handler
	w     io.Writer
	mu    *sync.Mutex // serializes prefix + line so concurrent logs don't interleave
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{
		inner: slog.NewTextHandler(w, opts),
		w:     w,
		mu:    &sync.Mutex{},
	}
}

// Enabled implements slog.Handler.
func (h *ColorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.w, levelColor(r.Level)+r.Level.String()+"\033[0m "); err != nil {
		return err
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithAttrs(attrs), w: h.w, mu: h.mu}
}

// WithGroup implements slog.Handler.
func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithGroup(name), w: h.w, mu: h.mu}
}

func levelColor(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "\033[36m" // cyan
	case l < slog.LevelWarn:
		return "\033[32m" // green
	case l < slog.LevelError:
		return "\033[33m" // yellow
	default:
		return "\033[31m" // red
	}
}
