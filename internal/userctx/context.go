package userctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey struct{}

// WithUserID stores the authenticated user id supplied by the auth
// provider. The core never authenticates; it only checks ownership.
func WithUserID(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(contextKey{}).(snowflake.ID)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
