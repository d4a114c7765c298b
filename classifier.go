package portal

// FallbackUserMessage is returned for any error that is not a canonical
// backend error or whose code is not in the fixed vocabulary. Raw server
// text, stack traces, and internal identifiers never leak into user-facing
// output.
const FallbackUserMessage = "An unexpected error occurred. Please try again."

// userMessages maps canonical error codes to the fixed user-facing copy.
var userMessages = map[string]string{
	CodeAuthInvalidFormat:     "Email or password has an invalid format.",
	CodeAuthInvalid:           "Invalid credentials. Check your email and password.",
	CodeAuthRequired:          "Authentication required. Please sign in again.",
	CodeAuthForbidden:         "You do not have permission to access this resource.",
	CodeAuthRateLimitExceeded: "Too many attempts. Please wait a few minutes.",

	CodeOrgRequired:         "Organization not identified. Please sign in again.",
	CodeOrgInvalidFormat:    "Invalid organization identifier.",
	CodeOrgNotFound:         "Organization not found.",
	CodeOrgDeprecatedHeader: "Invalid request header. Please contact support.",

	CodePermissionDenied: "You do not have permission for this operation.",

	CodeInternalError: "Server error. Try again or contact support.",
	CodeNetworkError:  "Could not reach the server. Check your connection and try again.",
}

// forceLogoutCodes is the session-invalidating set. This table is the
// single authority for deauthorization triggers; it must not be duplicated
// elsewhere.
var forceLogoutCodes = map[string]struct{}{
	CodeAuthInvalid:      {},
	CodeAuthRequired:     {},
	CodeOrgRequired:      {},
	CodeOrgInvalidFormat: {},
	CodeOrgNotFound:      {},
}

// ToUserMessage maps an error to the fixed user-facing copy for its
// canonical code. Nil errors, non-canonical errors, and unknown codes all
// yield the single fallback message.
func ToUserMessage(err error) string {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return FallbackUserMessage
	}

	if msg, ok := userMessages[apiErr.Code]; ok {
		return msg
	}
	return FallbackUserMessage
}

// ShouldForceLogout reports whether err invalidates the current session.
// Only canonical errors with a code in the invalidating set qualify;
// transport failures and generic server errors do not.
func ShouldForceLogout(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}

	_, invalidating := forceLogoutCodes[apiErr.Code]
	return invalidating
}
