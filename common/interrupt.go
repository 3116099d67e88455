package common

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// InterruptContext returns a context cancelled on the first interrupt or termination signal.
// A second signal exits the process.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
	go func() {
		defer signal.Stop(interrupt)
		select {
		case sig := <-interrupt:
			slog.Warn("Received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-interrupt
		slog.Error("Received second signal, exiting", "signal", sig)
		os.Exit(1)
	}()
	return ctx, cancel
}
