package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"eventspool/internal/config"
)

type Logger struct {
	l *slog.Logger
}

func New(cfg *config.Config) *Logger {
	// agent.log lives next to the DB
	var out io.Writer = os.Stdout
	level := slog.LevelInfo
	if cfg != nil {
		if cfg.DBPath != "" {
			dir := filepath.Dir(cfg.DBPath)
			_ = os.MkdirAll(dir, 0o755)
			f, err := os.OpenFile(filepath.Join(dir, "agent.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				out = io.MultiWriter(os.Stdout, f)
			}
		}
		_ = level.UnmarshalText([]byte(cfg.LogLevel))
	}
	return NewWriter(out, level)
}

// NewWriter builds a JSON logger on w. Used by tests and the CLI.
func NewWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: false, Level: level})
	return &Logger{l: slog.New(handler)}
}

func (lg *Logger) With(args ...any) *Logger { return &Logger{l: lg.l.With(args...)} }

// Slog exposes the underlying logger for packages that take *slog.Logger.
func (lg *Logger) Slog() *slog.Logger { return lg.l }

func (lg *Logger) Info(msg string, args ...any)  { lg.l.Info(msg, args...) }
func (lg *Logger) Warn(msg string, args ...any)  { lg.l.Warn(msg, args...) }
func (lg *Logger) Error(msg string, args ...any) { lg.l.Error(msg, args...) }
func (lg *Logger) Debug(msg string, args ...any) { lg.l.Debug(msg, args...) }
