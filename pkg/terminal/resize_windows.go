//go:build windows

package terminal

import "context"

// NotifyResize never fires on Windows, which has no resize signal.
func NotifyResize(ctx context.Context) <-chan struct{} {
	return make(chan struct{})
}
