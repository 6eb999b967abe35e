// Package sinks implements progress consumers for structured logging and
// Prometheus metrics. Each sink satisfies progress.Sink.
package sinks
