// Package metrics records htmlnorm run metrics behind the Recorder
// interface.
//
// Components default to NoopRecorder, so callers never nil-check. When
// metrics.textfile or metrics.listen is configured, the CLI swaps in a
// PrometheusRecorder bound to its own registry; the registry is then
// written as a node-exporter textfile after a batch run or served on
// /metrics in watch mode.
package metrics
