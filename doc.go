// Package portal implements the session and navigation layer of a
// multi-tenant web portal: authenticating against the backend API,
// establishing a tenant (organization) scope, deriving a permission
// snapshot, and gating navigation and routes from that state.
//
// Session lifecycle:
//   - SessionStore owns the tri-state session (loading, authenticated,
//     anonymous). Boot restores persisted credentials, Login/Logout/
//     RefreshIdentity mutate the session atomically, and a forced
//     deauthorization path clears everything when the backend rejects
//     the credential. Every mutation replaces the full state; no partial
//     authenticated state is ever observable.
//   - The tenant id is SSOT: it is always the organization reported by
//     the identity-lookup call, and persisted state is corrected to match
//     whenever they diverge.
//
// Request gateway:
//   - Client is the single choke point for authenticated calls. It
//     injects the bearer credential and X-Organization-Id headers, maps
//     failures into the canonical {code, message} error shape, and fires
//     a single-subscriber deauthorization callback on unauthorized or
//     tenant-invalid responses.
//
// Access gating:
//   - ToUserMessage and ShouldForceLogout classify canonical errors;
//     ShouldForceLogout is the single authority for which codes
//     invalidate a session.
//   - middleware/guard provides fail-closed route and permission guards,
//     and VisibleEntries hides navigation entries with the exact same
//     permission predicate the route guard enforces.
package portal
