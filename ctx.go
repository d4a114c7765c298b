package portal

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the UserInfo in the given context
func WithContext(r context.Context, user *UserInfo) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*UserInfo, bool) {
	raw, ok := ctx.Value(userCtxKey).(*UserInfo)
	return raw, ok
}

// GetRouterUser extracts the UserInfo from the router context
func GetRouterUser(ctx router.Context, key string) (*UserInfo, bool) {
	if key == "" {
		key = TemplateUserKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*UserInfo)
	return user, ok
}

// Can is a convenience function to check a permission directly from the
// standard context. A missing user answers false.
func Can(ctx context.Context, permission string) bool {
	user, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return user.HasPermission(permission)
}

// CanFromRouter is a convenience function to check a permission directly
// from the router context
func CanFromRouter(ctx router.Context, permission string) bool {
	user, ok := GetRouterUser(ctx, "")
	if !ok {
		return false
	}
	return user.HasPermission(permission)
}
