package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartPrometheusServer serves the default Prometheus registry on addr in a
// background goroutine. The returned shutdown func stops the server.
func StartPrometheusServer(addr string, logger log.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// errors after startup (like port in use) are logged but not fatal
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("prometheus server error", "addr", addr, "error", err)
		}
	}()

	logger.Info("serving metrics", "addr", addr)
	return server.Shutdown
}
