// Package prometheus renders authsession Store metrics for Prometheus.
//
// [NewPrometheusExporter] accepts an [authsession.Store] and exposes an
// [http.Handler] writing text exposition format. Every series carries a
// backend label. Creation, read and consumption counters are one family each
// with an outcome label (authsession_consume_total{outcome="already_used"}),
// and authsession_backend_up reports a health probe taken during the scrape.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate store state.
package prometheus
