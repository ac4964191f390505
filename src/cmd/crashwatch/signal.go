// FILE: crashwatch/src/cmd/crashwatch/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// Exit code for a second interrupt (128 + SIGINT)
const exitInterrupted = 130

// Manages OS signals for a run. The first SIGINT/SIGTERM cancels the run so
// a partial report is still written; a second one exits immediately.
type SignalHandler struct {
	logger  *log.Logger
	sigChan chan os.Signal
	done    chan struct{}
}

// Creates a signal handler
func NewSignalHandler(logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		logger:  logger,
		sigChan: make(chan os.Signal, 2),
		done:    make(chan struct{}),
	}

	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// Handle cancels the run on the first signal
func (sh *SignalHandler) Handle(cancel context.CancelFunc) {
	go func() {
		select {
		case sig := <-sh.sigChan:
			sh.logger.Info("msg", "Signal received, stopping run and writing report",
				"signal", sig)
			notice("\nStopping run, writing partial report (interrupt again to exit now)\n")
			cancel()
		case <-sh.done:
			return
		}

		select {
		case sig := <-sh.sigChan:
			sh.logger.Warn("msg", "Second signal received, exiting immediately",
				"signal", sig)
			shutdownLogger()
			os.Exit(exitInterrupted)
		case <-sh.done:
		}
	}()
}

// Cleans up signal handling
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
	close(sh.done)
}
