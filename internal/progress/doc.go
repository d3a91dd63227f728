// Package progress carries worker output and run lifecycle events from the
// supervisor's reader goroutine to the display and bookkeeping sinks. A Hub
// batches events on a single background goroutine, so sinks observe events in
// exactly the order they were published.
package progress
