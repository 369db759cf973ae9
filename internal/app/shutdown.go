package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the HTTP server first so no new lifecycle events are produced
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Closing the bus lets the sink drain remaining events and return
	a.bus.Close()
	a.cancel()

	a.wg.Wait()

	err = a.eventStore.Close()
	if err != nil {
		a.logger.Error("event-store-close-error", zap.Error(err))
	}

	a.snapshotCache.Close()

	a.logger.Info("application-shutdown-complete")

	return nil
}
