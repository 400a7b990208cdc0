// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged and written to a crash file but don't crash the
// process. Use this for async work whose failure should not be fatal.
//
// Example:
//
//	common.SafeGo(logger, "signal-cancel", func() {
//	    ...
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := GetStackTrace()

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine - continuing service operation")
				} else {
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
				}

				// Keep a report on disk for post-mortem analysis
				WriteCrashFile(fmt.Sprintf("goroutine %s: %v", name, r), stackTrace)
			}
		}()

		fn()
	}()
}
