package portal

import (
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Organization is the tenant reference reported by the identity lookup.
type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// UserInfo is the identity payload returned by GET /api/v1/auth/me. The
// permission list is a snapshot taken at fetch time; it is replaced
// wholesale on every identity refresh, never recomputed locally.
type UserInfo struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	IsActive     bool         `json:"is_active"`
	Organization Organization `json:"organization"`
	Roles        []string     `json:"roles"`
	Permissions  []string     `json:"permissions"`
}

// HasPermission reports exact membership in the permission snapshot.
func (u *UserInfo) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasRole reports exact membership in the role list.
func (u *UserInfo) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 100),
		),
	)
}

// LoginResponse is the authenticate endpoint response.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// MessageResponse is the generic acknowledgement body (e.g. logout).
type MessageResponse struct {
	Message string `json:"message"`
}

// StoredSession is the persisted credential triple: token, tenant id, and
// absolute expiry. The three values are always written and cleared as a
// group.
type StoredSession struct {
	AccessToken    string
	OrganizationID string
	ExpiresAt      time.Time
}

// Expired reports whether the persisted expiry has passed. A zero expiry
// never expires.
func (s StoredSession) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// ExpiryMillis renders the expiry as an epoch-millisecond string, the
// persistence wire format. Zero expiry renders empty.
func (s StoredSession) ExpiryMillis() string {
	if s.ExpiresAt.IsZero() {
		return ""
	}
	return strconv.FormatInt(s.ExpiresAt.UnixMilli(), 10)
}

// ParseExpiryMillis parses an epoch-millisecond string back into a
// time.Time. Empty or malformed input yields the zero time.
func ParseExpiryMillis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
