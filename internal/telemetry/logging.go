package telemetry

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dwsmith1983/standbyprobe/internal/config"
)

// NewLogger builds a slog logger writing JSON or text at the given level.
// Unknown levels fall back to info; config validation rejects them earlier.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := config.ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
