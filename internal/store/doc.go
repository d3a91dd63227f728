// Package store defines interfaces for persistence dependencies (the run
// history repository). Implementations live under internal/storage; this
// package must not import database drivers or concrete clients.
package store
