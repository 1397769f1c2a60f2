// Package memtrack accounts for process-wide pixel memory usage.
//
// Every local pixel allocation made by an image buffer is registered here so
// diagnostics can report how much pixel memory is live, and so an optional
// budget can turn runaway allocations into recoverable errors instead of an
// OOM kill.
package memtrack

import (
	"fmt"
	"sync/atomic"
)

var (
	used  atomic.Int64
	limit atomic.Int64 // 0 = unlimited
)

// Add records n bytes of newly allocated pixel memory.
func Add(n int64) { used.Add(n) }

// Sub records n bytes of released pixel memory.
func Sub(n int64) { used.Add(-n) }

// Used returns the bytes of pixel memory currently live.
func Used() int64 { return used.Load() }

// SetLimit sets the maximum bytes of live pixel memory. 0 disables the limit.
func SetLimit(n int64) { limit.Store(n) }

// Limit returns the configured budget (0 = unlimited).
func Limit() int64 { return limit.Load() }

// Reserve checks that allocating n more bytes stays within the budget and, if
// so, records them in one atomic step, so concurrent reservations cannot
// jointly exceed the limit. The caller must pair a successful Reserve with
// Sub when the memory is released.
func Reserve(n int64) error {
	for {
		lim := limit.Load()
		cur := used.Load()
		if lim > 0 && cur+n > lim {
			return fmt.Errorf("memtrack: allocation of %d bytes exceeds pixel memory limit (%d of %d in use)",
				n, cur, lim)
		}
		if used.CompareAndSwap(cur, cur+n) {
			return nil
		}
	}
}
