package log

import (
	"fmt"
	"runtime/debug"
)

// SafeGo runs fn in a new goroutine, recovering and logging any panic.
// A panicking background goroutine must never take the wrapper down with
// it: the TUI child and socket server keep serving.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error(CatWrapper, "goroutine panic recovered",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
