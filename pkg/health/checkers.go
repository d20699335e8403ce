package health

import (
	"context"
	"fmt"
	"runtime"
)

// GoroutineCountCheck fails when the process runs more than max goroutines,
// which usually indicates a leak.
func GoroutineCountCheck(max int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return fmt.Errorf("%d goroutines running, limit %d", n, max)
		}
		return nil
	}
}
