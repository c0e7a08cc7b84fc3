// Package middleware exposes HTTP adapters that put the session owner on the
// request context and translate session errors into HTTP statuses.
//
// # Guards
//
//   - [Guard]: net/http middleware verifying the bearer token.
//   - [GinGuard]: the same for gin routers.
//   - [RequireSessionOwner]: loads a session and rejects other principals.
//
// Guards also copy X-Request-ID and the client address onto the context so
// store audit events and logs can be correlated with the request.
//
// # What this package must NOT do
//
//   - Parse tokens itself (delegates to principal.Verifier).
//   - Consume sessions. Completion stays with the handler.
package middleware
