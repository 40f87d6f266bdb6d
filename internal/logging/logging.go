// ABOUTME: Logger construction for coven-chat from the logging config section
// ABOUTME: Picks a colour or JSON handler, redacts credentials, and optionally rotates a log file

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from cfg. Output goes to stderr unless cfg.File is set,
// in which case it goes to a size-rotated file. The returned Closer releases
// that file and must be called on shutdown.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	if cfg.File != "" {
		w, err := NewRotatingWriter(RotationConfig{
			File:      cfg.File,
			MaxSizeMB: cfg.MaxSizeMB,
			MaxFiles:  cfg.MaxFiles,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = w, w
	}

	return slog.New(NewHandler(out, cfg)), closer, nil
}

// NewHandler returns the redacting handler for cfg writing to out.
// Colour is only used for text output to a terminal.
func NewHandler(out io.Writer, cfg config.LoggingConfig) slog.Handler {
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = &colorHandler{
			out:     out,
			mu:      &sync.Mutex{},
			level:   level,
			noColor: color.NoColor || !isTerminal(out),
		}
	}

	return NewRedactingHandler(handler)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	out     io.Writer
	mu      *sync.Mutex // shared with handlers derived via WithAttrs/WithGroup
	level   slog.Level
	noColor bool
	attrs   []slog.Attr
	groups  []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	paint := func(c *color.Color, s string) string {
		if h.noColor {
			return s
		}
		return c.Sprint(s)
	}
	faint := color.New(color.FgHiBlack)

	if !r.Time.IsZero() {
		buf.WriteString(paint(faint, r.Time.Format("15:04:05")+" "))
	}

	switch {
	case r.Level >= slog.LevelError:
		buf.WriteString(paint(color.New(color.FgRed, color.Bold), "ERR "))
	case r.Level >= slog.LevelWarn:
		buf.WriteString(paint(color.New(color.FgYellow), "WRN "))
	case r.Level >= slog.LevelInfo:
		buf.WriteString(paint(color.New(color.FgCyan), "INF "))
	default:
		buf.WriteString(paint(color.New(color.FgMagenta), "DBG "))
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(paint(faint, " "+a.Key+"="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(paint(faint, " "+prefix+a.Key+"="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}

	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)

	clone := *h
	clone.groups = newGroups
	return &clone
}
