package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/apptrail/internal/cli"
	"github.com/aretw0/apptrail/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serveMetrics records step metrics for env's runners and exposes them on
// addr until the returned stop function is called.
func serveMetrics(env *cli.Env, addr string) func() {
	if addr == "" {
		return func() {}
	}
	reg := prometheus.NewRegistry()
	env.Hooks = env.Hooks.Merge(observability.NewMetrics(reg).Hooks())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Logger.Error("Metrics server failed", "err", err)
		}
	}()
	env.Logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
