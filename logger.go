package framez

import (
	"context"
	"log/slog"
)

// nopHandler discards every record. It is the default so that a pipeline
// without WithLogger stays silent.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

func nopLogger() *slog.Logger {
	return slog.New(nopHandler{})
}
