// Package rate throttles authentication session creation with fixed-window
// counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key layout, below the
// store key prefix:
//   - rl:o:<owner> for each principal
//   - rl:ip:<ip> for each client address
//
// Counters live in the same backend as the sessions when it supports them
// (Redis, Valkey) and in process memory otherwise.
//
// # What this package must NOT do
//
//   - Decide HTTP responses. Callers map ErrRateLimited.
//   - Be imported outside the authsession module.
package rate
