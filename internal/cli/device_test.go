package cli

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForwardSignals_DeliversEveryInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 3)
	interrupts := make(chan struct{})
	go forwardSignals(ctx, sigCh, interrupts)

	// Signals arrive faster than the console consumes them.
	sigCh <- os.Interrupt
	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	for i := 0; i < 3; i++ {
		select {
		case <-interrupts:
		case <-time.After(2 * time.Second):
			t.Fatalf("interrupt %d was not delivered", i+1)
		}
	}
}

func TestForwardSignals_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		forwardSignals(ctx, sigCh, make(chan struct{}))
		close(done)
	}()

	sigCh <- os.Interrupt
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "forwarder blocked after cancellation")
	}
}
