package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmikheev/staffauth/internal/logger"
)

// AuthOps counts auth operations by name and outcome.
// Operations: login, renew, logout. Results: ok, denied, error, forced
var AuthOps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "staffauth",
		Name:      "auth_operations_total",
		Help:      "Auth operations by operation and result",
	},
	[]string{"op", "result"},
)

// BootstrapServer starts the metrics listener in background and returns the
// server so the caller can shut it down
func BootstrapServer(addr string, health func(context.Context) error, l logger.Logger) *http.Server {
	srv := newServer(addr, health)

	go func() {
		l.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server error", "error", err.Error())
		}
	}()

	return srv
}

func newServer(addr string, health func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}
