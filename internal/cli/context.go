package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NewContext returns the context of a CLI run. It is cancelled on the first SIGINT or SIGTERM,
// a second signal terminates the process with the default handler.
func NewContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
