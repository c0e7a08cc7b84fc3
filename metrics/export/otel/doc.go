// Package otel publishes authsession Store metrics through OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family
// (authsession_create_total, authsession_consume_total, ...) whose data points
// carry backend and outcome attributes, gauges for the cumulative consume
// latency buckets keyed by an le attribute, and authsession_backend_up fed by
// a health probe. A single callback reads the Store on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate store state.
package otel
