// Package logging wires slog to a colored console handler and an optional
// rotating log file.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level slog.Level

	// FilePath enables the rotating file handler when non-empty.
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	ConsoleOnly bool
}

// Setup installs the default slog logger and returns a closer for the file
// sink (a no-op closer when no file is configured).
func Setup(opts Options) (io.Closer, error) {
	console := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      opts.Level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if opts.ConsoleOnly || opts.FilePath == "" {
		slog.SetDefault(slog.New(console))
		return nopCloser{}, nil
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	file := slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: opts.Level})

	slog.SetDefault(slog.New(newFanoutHandler(console, file)))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanoutHandler forwards records to every handler that accepts the level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) *fanoutHandler {
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if e := handler.Handle(ctx, r); e != nil {
				err = e
			}
		}
	}
	return err
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newFanoutHandler(handlers...)
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newFanoutHandler(handlers...)
}
