// Package auth carries the logged-in session through a context.Context.
// Nothing in the module reads ambient global state; callers attach the
// user explicitly, which keeps the service testable without a real
// identity provider.
package auth

import (
	"context"

	"github.com/voxa-chat/voxa/types"
)

var ctxKeyUser = struct{ name string }{name: "ctx-key-user"}

func ContextWithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(types.User)
	return user, ok
}
