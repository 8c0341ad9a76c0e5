// Package logger adapts log/slog to armrt's console/log-file split: every
// record is always written to the configured log file, and additionally
// mirrored to stderr when either the record is at warn level or above, or a
// debug toggle has been switched on. Grounded on rcornwell-S370's
// util/logger wrapper (same split-writer Handle shape); adapted here to
// drop the original's unconditional pointer dereference in NewHandler,
// which panicked on a nil debug argument before any flag was ever wired in.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogHandler is an slog.Handler that writes every record to out, and also
// to stderr when debug output is enabled or the record is at warn/error
// level.
type LogHandler struct {
	out    io.Writer
	h      slog.Handler
	mu     *sync.Mutex
	stderr io.Writer
	debug  bool
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, stderr: h.stderr, debug: h.debug}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, stderr: h.stderr, debug: h.debug}
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level, r.Message}

	if r.NumAttrs() != 0 {
		r.Attrs(func(a slog.Attr) bool {
			strs = append(strs, a.Value.String())
			return true
		})
	}
	result := strings.Join(strs, " ") + "\n"
	b := []byte(result)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}

	if (h.debug || r.Level >= slog.LevelWarn) && h.stderr != nil {
		_, err = h.stderr.Write(b)
	}
	return err
}

// SetDebug toggles stderr mirroring of sub-warn records on or off.
func (h *LogHandler) SetDebug(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debug = on
}

// NewHandler builds a LogHandler writing to file, optionally mirroring
// sub-warn records to stderr when debugEnabled is true. opts may be nil,
// in which case slog's defaults apply; debugEnabled defaults to false when
// the caller has no flag to wire in yet (e.g. armrtctl, which has no
// --debug flag of its own and relies on warn/error records reaching
// stderr unconditionally).
func NewHandler(file io.Writer, opts *slog.HandlerOptions, debugEnabled bool) *LogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &LogHandler{
		out: file,
		h: slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:       opts.Level,
			AddSource:   opts.AddSource,
			ReplaceAttr: nil,
		}),
		mu:     &sync.Mutex{},
		stderr: os.Stderr,
		debug:  debugEnabled,
	}
}
