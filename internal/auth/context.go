package auth

import (
	"context"

	"github.com/septivank/asset-tracker/internal/scope"
)

type ctxKey string

const (
	sessionKey ctxKey = "session"
	callerKey  ctxKey = "caller"
)

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func WithCaller(ctx context.Context, c scope.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the resolved caller. Without one, the caller has the
// Denied role.
func CallerFrom(ctx context.Context) scope.Caller {
	if c, ok := ctx.Value(callerKey).(scope.Caller); ok {
		return c
	}
	return scope.Caller{Role: scope.Denied{Reason: ErrMissingToken}}
}
