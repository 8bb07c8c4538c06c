// Package frontier implements the global URL frontier: the FIFO queue
// of not-yet-fetched URLs plus the bookkeeping of every URL the crawl
// has ever seen.
//
// # Lifecycle
//
// A URL enters through Add, which canonicalizes it and rejects
// anything already seen. Take hands the head of the queue to a worker
// and moves it to the in-flight set; the worker finishes the URL with
// exactly one of MarkVisited or MarkFailed. At any instant a URL is in
// at most one of pending, in-flight, visited, or failed, and the seen
// set is exactly their union.
//
// # Concurrency
//
// All methods are safe for concurrent use. Take blocks while the
// queue is empty; Add blocks while the queue is at capacity
// (backpressure). Close releases every blocked caller with ErrClosed.
// The robots policy check inside Add may perform network I/O and is
// deliberately executed outside the frontier lock.
//
// # Persistence
//
// Snapshot exports the complete state as plain data; Restore rebuilds
// it. In-flight URLs are folded back into the pending queue on
// restore, so a crawl interrupted mid-fetch retries those URLs.
package frontier
