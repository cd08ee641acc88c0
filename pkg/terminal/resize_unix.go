//go:build !windows

package terminal

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// NotifyResize delivers a notification on every window size change until ctx is done.
func NotifyResize(ctx context.Context) <-chan struct{} {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)

	out := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
