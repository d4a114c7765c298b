package portal

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Gateway holds the request-gateway operations the session store depends
// on: the typed auth endpoints plus the credential/tenant fields it is the
// sole owner of.
type Gateway interface {
	Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context) (*UserInfo, error)
	Logout(ctx context.Context) (*MessageResponse, error)

	SetAccessToken(token string)
	SetOrganizationID(id string)
	ClearCredentials()

	// OnUnauthorized registers the deauthorization subscriber. Exactly one
	// subscriber is allowed; a second registration fails.
	OnUnauthorized(fn func()) error
}

// SessionReader is the read-only view of the session consumed by guards,
// navigation filtering, and template helpers.
type SessionReader interface {
	Status() Status
	HasPermission(permission string) bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PORTAL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PORTAL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PORTAL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PORTAL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
