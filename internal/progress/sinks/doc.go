// Package sinks implements concrete progress consumers: run history storage,
// Prometheus collectors, structured logging and plain-text writers. Each sink
// satisfies the progress.Sink interface and is safe for repeated Consume/Close
// cycles.
package sinks
