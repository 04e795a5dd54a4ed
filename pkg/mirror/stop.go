package mirror

import "sync/atomic"

// StopFlag is the cooperative cancellation signal shared by a single
// worker's event loop, tree copier, and file copier. It corresponds to
// the C original's `volatile sig_atomic_t *stop_flag`, set from a
// signal handler and polled at every blocking point and recursion
// boundary (spec.md §4.8). In this rewrite it is set either by the
// registry (via Registry.halt) or by the engine itself upon observing
// the watched root being deleted or renamed out from under it.
//
// It is deliberately a flat atomic bool rather than a context.Context:
// spec.md's REDESIGN FLAGS call for "a shared boolean inside each
// worker's context passed explicitly to every blocking/recursive
// operation", and threading an explicit *StopFlag through copy_tree's
// recursion makes the cancellation points visible at every call site,
// matching the original's structure. The registry (see pkg/registry)
// still wraps each worker goroutine with its own done channel for
// lifecycle synchronization; Set is what actually requests the
// goroutine's exit.
type StopFlag struct {
	flag atomic.Bool
}

// Set requests cancellation. Safe to call multiple times and
// concurrently with Stopped.
func (s *StopFlag) Set() {
	s.flag.Store(true)
}

// Stopped reports whether cancellation has been requested.
func (s *StopFlag) Stopped() bool {
	return s.flag.Load()
}
