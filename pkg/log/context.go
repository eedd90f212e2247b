package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithAuthor returns a context whose logger carries the author id.
func WithAuthor(ctx context.Context, authorID uint) context.Context {
	l := Ctx(ctx)
	return WithLogger(ctx, l.With().Uint(FieldAuthorID, authorID).Logger())
}
