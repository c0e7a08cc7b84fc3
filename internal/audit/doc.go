// Package audit implements async dispatching of session lifecycle events.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] is the buffered async relay. Under drop-if-full it sheds
//     routine events but never the record of a successful consumption, and it
//     strips credential keys from event metadata before queueing.
//   - [Event] is the structured audit record with timestamp, type, session, principal, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the root Store does.
//
// # What this package must NOT do
//
//   - Carry payment tokens or any other credential in an Event.
//   - Import authsession or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
