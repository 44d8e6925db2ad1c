// Package schedule provides the single-threaded execution model used by the
// synchronization controller.
//
// A Loop owns one goroutine and runs posted tasks one at a time in FIFO
// order, so state touched only from loop tasks needs no further locking.
// Blocking work (editor calls) runs on helper goroutines through Loop.Go and
// resumes on the loop with a continuation.
//
// Debouncer and Ticker deliver their callbacks through a dispatch function,
// normally Loop.Post. Both are driven by a k8s.io/utils/clock clock so tests
// can step time with a fake clock.
package schedule
