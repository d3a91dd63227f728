// Package supervisor runs the external crawler as a child process, at most one
// at a time. It owns the single process slot, streams the worker's merged
// stdout/stderr line by line into a progress.Publisher and classifies how the
// process ended.
//
// State transitions:
//
//	Idle -> Launching -> Running -> Stopping -> Idle
//	                        \__________________/
//
// Launching covers persisting the run configuration and spawning the process;
// a failure in either returns the slot to Idle. The reader goroutine performs
// every transition back to Idle, after the final status event is published.
package supervisor
