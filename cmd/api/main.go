package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "restaurant_catalog/internal/adapters/http_server"
	"restaurant_catalog/internal/adapters/observability"
	"restaurant_catalog/internal/bootstrap"
	"restaurant_catalog/internal/jobs"
	"restaurant_catalog/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer deps.Close()

	sup := jobs.NewSupervisor(deps.Indexer, jobs.Options{
		Workers:       cfg.JobWorkers,
		Timeout:       cfg.JobTimeout,
		TTL:           cfg.JobTTL,
		SweepInterval: cfg.JobSweepInterval,
	})
	go sup.Run(ctx)

	// http
	srv := server.New(cfg.ProviderTimeout + 10*time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: deps.Query, Idx: deps.Indexer, Jobs: sup})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Int("job_workers", cfg.JobWorkers).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("index jobs still running at exit")
	}
}
