// Package logutil keeps slog optional: constructors across the module take
// a *slog.Logger that may be nil, and normalize it here instead of checking
// for nil at every call site.
package logutil

import (
	"io"
	"log/slog"
)

var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns the shared discard logger. Handy in tests that do not care
// about log output.
func Noop() *slog.Logger { return noop }

// NoopIfNil substitutes the discard logger for a nil one, so callers can
// log unconditionally.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}
