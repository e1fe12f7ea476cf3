package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/config"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/logger"
	"dcf_valuation/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Load environment variables and config
	cfg, err := config.LoadWithDotenv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New(prometheus.DefaultRegisterer)
	svc, err := pipeline.NewFromConfig(ctx, cfg, log, recorder, true)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	valuation.NewHandler(svc.Orchestrator, svc.Repository, log).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", *addr).
		Strs("routes", []string{"POST /api/valuation/report", "GET /api/valuation/latest", "GET /metrics"}).
		Msg("API server starting")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}
