package memalloc

import "log"

// Option configures an Allocator at construction time. There are only
// two knobs, so functional options are used in place of a public
// mutable struct of flags, following dbm's own constructor style.
type Option func(*Allocator)

// WithLogger sets the logger diagnostics are written to. The default
// is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithStrictCheck makes every Allocate, Free and Reallocate call that
// changes the heap run Check() before returning and log the first
// invariant violation found, if any. Out-of-memory returns and Free(nil)
// change nothing and skip the check. This is the test-mode behavior spec.md scopes check()
// to; it is never enabled by default because Check is O(heap size) and
// not meant for production hot paths.
func WithStrictCheck(strict bool) Option {
	return func(a *Allocator) { a.strict = strict }
}
