package common

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/khanghh/kbooks/params"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

func healthCheckHandler(checks map[string]HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("Readiness check failed", "dependency", name, "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func StartHealthCheckServer(ctx context.Context, done chan struct{}, checks map[string]HealthChecker) {
	server := &http.Server{
		Addr:    params.HealthCheckServerAddr,
		Handler: healthCheckHandler(checks),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		server.Shutdown(shutdownCtx)
		cancel()
		close(done)
	case err := <-serverErr:
		slog.Error("Health check server stopped", "error", err)
		close(done)
	}
}
