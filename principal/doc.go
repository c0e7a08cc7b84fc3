// Package principal verifies and mints the bearer tokens that identify who
// owns an authentication session.
//
// A token carries exactly one of customer_id (signed-in shopper) or
// anonymous_id (guest checkout). [Verifier.Verify] returns that identity as a
// [session.Principal]; callers compare it with [session.Session.OwnedBy]
// before completing a payment.
//
// # What this package must NOT do
//
//   - Touch session storage.
//   - Accept tokens signed with an algorithm other than the configured one.
package principal
