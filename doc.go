// Package authsession provides the process-facing store for 3-D Secure
// authentication sessions.
//
// A [Store] wraps one [session.Provider] chosen at construction time and adds
// request validation, lock-free metrics, async audit events and structured
// logging. Build one with [Builder], or use the memoized process default
// returned by [Default], which reads its [Config] from the environment.
//
// # Architecture boundaries
//
// Storage semantics (atomic consumption, expiry, the record layout) live in
// package session. This package owns wiring and observability only; it never
// changes the outcome a provider reports.
//
// # What this package must NOT do
//
//   - Compare ownership or cart versions. Callers do that with
//     [session.Session.OwnedBy] and the fields of the returned session.
//   - Retry backend failures.
//   - Log or audit payment tokens.
package authsession
