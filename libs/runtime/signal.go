package runtime

import (
	"context"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on SIGINT or SIGTERM. A second signal after
// cancellation kills the process with the default behaviour.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
