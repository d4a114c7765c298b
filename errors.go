package portal

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Canonical error codes. This is a closed vocabulary shared with the
// backend; classification logic switches on these values only, never on
// message text.
const (
	CodeAuthInvalidFormat     = "AUTH_INVALID_FORMAT"
	CodeAuthInvalid           = "AUTH_INVALID"
	CodeAuthRequired          = "AUTH_REQUIRED"
	CodeAuthForbidden         = "AUTH_FORBIDDEN"
	CodeAuthRateLimitExceeded = "AUTH_RATE_LIMIT_EXCEEDED"
	CodeOrgRequired           = "ORG_REQUIRED"
	CodeOrgInvalidFormat      = "ORG_INVALID_FORMAT"
	CodeOrgNotFound           = "ORG_NOT_FOUND"
	CodeOrgDeprecatedHeader   = "ORG_DEPRECATED_HEADER"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeNetworkError          = "NETWORK_ERROR"
)

// APIError is the canonical backend error: {error:{code,message}} plus an
// optional correlation id. Every non-2xx response is mapped into this
// shape before it reaches a caller.
type APIError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// errorEnvelope is the wire shape of a canonical error body.
type errorEnvelope struct {
	Err           APIError `json:"error"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// AsAPIError unwraps err into the canonical error shape.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

const (
	textCodeNoSession         = "NO_SESSION"
	textCodeSubscriberTaken   = "SUBSCRIBER_REGISTERED"
	textCodeInvalidTransition = "INVALID_SESSION_TRANSITION"
)

// ErrNoSession is returned when an operation requires an authenticated
// session and no credential is present. Local error: it never reaches the
// network.
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(textCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrSubscriberRegistered is returned when a second deauthorization
// subscriber attempts to register on the gateway.
var ErrSubscriberRegistered = goerrors.New("deauthorization subscriber already registered", goerrors.CategoryConflict).
	WithTextCode(textCodeSubscriberTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidTransition is recorded as the store's last error when a
// requested status change is not allowed by the session state machine.
var ErrInvalidTransition = goerrors.New("invalid session status transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

func newNetworkError() *APIError {
	return &APIError{
		Code:    CodeNetworkError,
		Message: "unable to reach the server",
	}
}

func newInternalError(status int) *APIError {
	return &APIError{
		Code:    CodeInternalError,
		Message: fmt.Sprintf("HTTP %d", status),
	}
}

func newAuthRequiredError() *APIError {
	return &APIError{
		Code:    CodeAuthRequired,
		Message: "authentication required",
	}
}
