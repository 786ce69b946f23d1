package wanderauth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/wanderauth/internal/logging"
)

// Logger is the structured, context-aware logger the engine and its
// components write to.
type Logger = logging.Logger

// NewTextLogger returns a Logger writing slog text records at level to w.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return logging.NewText(w, level)
}

// NewSlogLogger adapts an existing *slog.Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlogLogger(l)
}
