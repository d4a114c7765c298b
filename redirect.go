package portal

import (
	"time"

	"github.com/goliatone/go-router"
)

// DefaultRedirectCookie is the cookie that remembers the route a visitor
// was denied, so a successful sign in can send them back.
const DefaultRedirectCookie = "portal_redirect"

// SetRedirect stores the current URL in the redirect cookie. The cookie
// is short lived on purpose: a stale rejected route should not hijack an
// unrelated sign in later.
func SetRedirect(ctx router.Context, key string) {
	if key == "" {
		key = DefaultRedirectCookie
	}

	ctx.Cookie(&router.Cookie{
		Name:     key,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered route, falling back to def when the
// cookie is absent. The cookie is always deleted.
func GetRedirect(ctx router.Context, key string, def string) string {
	if key == "" {
		key = DefaultRedirectCookie
	}

	r := ctx.Cookies(key)
	delRedirect(ctx, key)
	if r == "" {
		return def
	}
	return r
}

func delRedirect(ctx router.Context, key string) {
	ctx.Cookie(&router.Cookie{
		Name:     key,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
