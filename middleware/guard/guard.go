// Package guard provides route middleware that gates access on the
// portal session: authentication for protected areas and permission
// checks for privileged ones. Decisions fail closed; a session that is
// not affirmatively authenticated is treated as anonymous, and a still
// loading session is answered with a neutral retry response rather than
// a premature denial.
package guard

import (
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Session is the read view of the session the guards consult. It mirrors
// the portal session store without importing it, avoiding a cycle.
type Session interface {
	Status() string
	HasPermission(permission string) bool
}

const (
	StatusLoading       = "loading"
	StatusAuthenticated = "authenticated"
)

// Logger interface for guard diagnostics.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type Config struct {
	// Session is required.
	Session Session
	// Filter defines a function to skip the guard when it returns true.
	Filter func(router.Context) bool
	// LoginPath is where anonymous visitors are redirected. Defaults to /login.
	LoginPath string
	// RedirectKey is the cookie remembering the rejected route.
	RedirectKey string
	// LoadingHandler answers requests that arrive before boot resolved.
	LoadingHandler router.HandlerFunc
	// Fallback renders the denial for a missing permission.
	Fallback func(ctx router.Context, permission string) error

	Logger Logger
}

// RequireAuth returns middleware that only lets authenticated sessions
// through. Anonymous visitors have their route remembered and are
// redirected to the sign in page.
func RequireAuth(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := getDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			switch cfg.Session.Status() {
			case StatusAuthenticated:
				return ctx.Next()
			case StatusLoading:
				return cfg.LoadingHandler(ctx)
			default:
				return redirectToLogin(ctx, cfg)
			}
		}
	}
}

// RequirePermission returns middleware that requires an authenticated
// session holding the given permission. The permission check never
// consults anything but the session's snapshot.
func RequirePermission(permission string, config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := getDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			switch cfg.Session.Status() {
			case StatusLoading:
				return cfg.LoadingHandler(ctx)
			case StatusAuthenticated:
			default:
				return redirectToLogin(ctx, cfg)
			}

			if !cfg.Session.HasPermission(permission) {
				cfg.Logger.Info("permission denied: %s %s requires %q", ctx.Method(), ctx.OriginalURL(), permission)
				return cfg.Fallback(ctx, permission)
			}

			return ctx.Next()
		}
	}
}

func redirectToLogin(ctx router.Context, cfg Config) error {
	setRedirectCookie(ctx, cfg.RedirectKey)

	statusCode := router.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = router.StatusFound
	}
	return ctx.Redirect(cfg.LoginPath, statusCode)
}

func setRedirectCookie(ctx router.Context, key string) {
	ctx.Cookie(&router.Cookie{
		Name:     key,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func getDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Session == nil {
		panic("PORTAL: guard configuration: Session is required.")
	}

	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	if cfg.RedirectKey == "" {
		cfg.RedirectKey = "portal_redirect"
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.LoadingHandler == nil {
		cfg.LoadingHandler = func(ctx router.Context) error {
			return ctx.Status(router.StatusServiceUnavailable).SendString("Session initializing, retry shortly")
		}
	}

	if cfg.Fallback == nil {
		cfg.Fallback = func(ctx router.Context, permission string) error {
			denied := errors.New(
				fmt.Sprintf("missing permission %q", permission),
				errors.CategoryAuthz,
			).WithCode(errors.CodeForbidden)
			return ctx.Status(router.StatusForbidden).SendString(denied.Message)
		}
	}

	return cfg
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) { fmt.Printf("[ERR] GUARD "+format+"\n", args...) }
func (d defLogger) Warn(format string, args ...any)  { fmt.Printf("[WRN] GUARD "+format+"\n", args...) }
func (d defLogger) Info(format string, args ...any)  { fmt.Printf("[INF] GUARD "+format+"\n", args...) }
func (d defLogger) Debug(format string, args ...any) { fmt.Printf("[DBG] GUARD "+format+"\n", args...) }
