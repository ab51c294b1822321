package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/srgjo27/eventflow/internal/adapter/handler"
	"github.com/srgjo27/eventflow/internal/bootstrap"
	"github.com/srgjo27/eventflow/internal/platform/config"
	"github.com/srgjo27/eventflow/internal/platform/logging"
	"github.com/srgjo27/eventflow/internal/platform/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "eventflow-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
		shutdownTracer = func(context.Context) error { return nil }
	}

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start")
	}
	defer app.Close()

	if cfg.SweepEnabled {
		go app.Fulfillment.RunPendingSweep(logging.WithLogger(ctx, logger.WithField("component", "sweep")), cfg.SweepInterval, cfg.SweepGrace)
	}

	mux := http.NewServeMux()
	handler.NewPurchaseHandler(app.Purchases, app.Availability).Routes(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.CORS(cfg.CORSOriginList(), handler.RequestLogger(mux, logger)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server startup failed")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown")
	}

	logger.Info("server exiting")
}
