package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// MaxValueLen is the longest attribute value passed through unmodified.
// Values beyond this are cut and suffixed with an ellipsis marker so a
// single pathological page title cannot flood the log.
const MaxValueLen = 512

// truncationMarker is appended to values cut at MaxValueLen.
const truncationMarker = "...(truncated)"

// CrawlHandler wraps an slog.Handler and sanitizes attributes before
// they reach the underlying handler.
//
// Design decision: We use a handler wrapper rather than sanitizing at
// each call site because:
//  1. It integrates with standard slog APIs; call sites stay clean
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Forgetting to sanitize at one of dozens of log lines is exactly
//     the kind of mistake this layer exists to prevent
type CrawlHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler
}

// NewCrawlHandler creates a CrawlHandler wrapping the given handler.
// If handler is nil, slog.Default's handler is used.
func NewCrawlHandler(handler slog.Handler) *CrawlHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &CrawlHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *CrawlHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *CrawlHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added,
// sanitized first.
func (h *CrawlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &CrawlHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *CrawlHandler) WithGroup(name string) slog.Handler {
	return &CrawlHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *CrawlHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	val := a.Value.String()
	val = StripCredentials(val)
	if len(val) > MaxValueLen {
		val = val[:MaxValueLen] + truncationMarker
	}
	return slog.String(a.Key, val)
}

// StripCredentials removes the userinfo component from a URL-shaped
// string. Non-URL strings and URLs without userinfo pass through
// unchanged.
func StripCredentials(s string) string {
	// Cheap pre-check: userinfo requires both a scheme separator and
	// an @ before the first path segment.
	if !strings.Contains(s, "://") || !strings.Contains(s, "@") {
		return s
	}

	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	u.User = nil
	return u.String()
}

// NewLogger creates a *slog.Logger writing text output through a
// CrawlHandler. Verbose selects Debug level, otherwise Info.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewCrawlHandler(textHandler))
}
