// Package session provides persistence for short-lived, single-use 3-D Secure
// authentication sessions.
//
// An authentication session bridges the initial payment attempt (which asked the
// customer to authenticate out of band) and the later completion request. It is
// created once, read by the completion flow, consumed at most once and then
// deleted or left for the backend to expire.
//
// # Providers
//
// [Provider] is the storage contract. It is implemented by [RedisProvider],
// [ValkeyProvider] and [SupabaseProvider] (durable, network-backed) and by
// [MemoryProvider] (process-local, for tests and local iteration). All providers
// share the same consumption routine built on [Transitioner], so their observable
// behavior does not drift.
//
// # Invariants
//
//   - [Provider.GetSession] returns only pending, unexpired sessions. Unknown,
//     consumed and expired ids all read as absent (nil, nil).
//   - [Provider.MarkSessionUsed] is an atomic pending → used transition. Exactly
//     one of any number of concurrent callers succeeds.
//   - Backend failures surface as [ErrStorageUnavailable] joined with the cause.
//     Nothing is retried inside this package.
//
// # What this package must NOT do
//
//   - Authorize payments, verify 3DS proofs or compare cart versions.
//   - Raise ownership errors; callers compare [Session.OwnedBy] themselves.
//   - Log payment tokens.
package session
