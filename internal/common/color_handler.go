package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

// ColorHandler is a slog handler producing one colorized line per record.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a new color handler
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{opts: opts, mu: &sync.Mutex{}, writer: w, masker: NewMasker()}
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle handles the Record
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.colorize(Gray, r.Time.Format(time.RFC3339)))
		b.WriteByte(' ')
	}
	b.WriteString(h.formatLevel(r.Level))
	b.WriteByte(' ')
	if len(h.groups) > 0 {
		b.WriteString(h.colorize(Cyan, "["+strings.Join(h.groups, ".")+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(h.colorize(Cyan, a.Key))
		b.WriteByte('=')
		b.WriteString(h.formatValue(a))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.colorize(Red, "[ERROR]")
	case level >= slog.LevelWarn:
		return h.colorize(Yellow, "[WARN ]")
	case level >= slog.LevelInfo:
		return h.colorize(Green, "[INFO ]")
	default:
		return h.colorize(Gray, "[DEBUG]")
	}
}

func (h *ColorHandler) formatValue(a slog.Attr) string {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if h.masker != nil {
			if masked, ok := h.masker.MaskValue(a.Key, s).(string); ok {
				s = masked
			}
		}
		return fmt.Sprintf("%q", s)
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.colorize(Magenta, v.String())
	case slog.KindDuration:
		return h.colorize(Yellow, v.Duration().String())
	case slog.KindTime:
		return h.colorize(Gray, v.Time().Format(time.RFC3339))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return h.colorize(Red, fmt.Sprintf("%q", h.masker.MaskString(err.Error())))
		}
		return v.String()
	default:
		return v.String()
	}
}

func (h *ColorHandler) colorize(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + Reset
}

// WithAttrs returns a new ColorHandler with the given attributes added
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

// WithGroup returns a new ColorHandler with the given group name added
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

// SetMasker sets the masker for this handler
func (h *ColorHandler) SetMasker(masker *Masker) {
	if masker == nil {
		masker = NewMasker()
	}
	h.masker = masker
}

// SetColorEnabled enables or disables colors
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
