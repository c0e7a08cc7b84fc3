// Package internaldefs holds the metric families, label names and bucket
// boundaries shared by the exporters.
//
// Store counters are grouped into families: creation, read and consumption
// counters become one series per outcome, so a dashboard can divide
// already_used by consumed without knowing individual metric names. Every
// series carries the backend label.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O. The exporters run the health probe themselves.
package internaldefs
