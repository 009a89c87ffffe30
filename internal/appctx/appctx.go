// Package appctx provides context-based utilities for cross-cutting concerns.
package appctx

import (
	"context"
	"log/slog"

	"github.com/openmedrec/medrec-go/internal/store"
)

type loggerKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

type accountKey struct{}

// WithAccount attaches the authenticated account to the context.
// Set by the bearer-token middleware after a successful resolve.
func WithAccount(ctx context.Context, account *store.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the authenticated account (if present).
func AccountFromContext(ctx context.Context) (*store.Account, bool) {
	a, ok := ctx.Value(accountKey{}).(*store.Account)
	return a, ok && a != nil
}
