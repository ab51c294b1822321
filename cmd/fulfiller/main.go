package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/srgjo27/eventflow/internal/adapter/mq"
	"github.com/srgjo27/eventflow/internal/bootstrap"
	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/platform/config"
	"github.com/srgjo27/eventflow/internal/platform/logging"
	"github.com/srgjo27/eventflow/internal/platform/obs"
	"github.com/srgjo27/eventflow/internal/worker"
)

// fulfiller retries ticket deliveries: it consumes ticket.fulfillment_failed
// events and periodically sweeps undelivered tickets.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("service", "fulfiller")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, log)

	shutdownTracer, err := obs.InitTracer(ctx, "eventflow-fulfiller", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Warn("tracing disabled")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer app.Close()

	go app.Fulfillment.RunPendingSweep(ctx, cfg.SweepInterval, cfg.SweepGrace)

	if cfg.RabbitURL == "" {
		log.Warn("RABBIT_URL not set, running the sweep only")
		<-ctx.Done()
		return
	}

	cons := mq.NewConsumer(mq.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.TicketExchange,
		Queue:    cfg.FulfillmentQueue,
		Bindings: []string{domain.RKTicketFulfillmentFailed},
		Prefetch: 8,
		DLX:      cfg.FulfillmentDLX,
		DLQ:      cfg.FulfillmentDLQ,
		Name:     "eventflow-fulfiller",
	})

	for {
		if err := cons.Connect(); err != nil {
			log.WithError(err).Warn("[fulfill] connect failed; retry in 2s")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		break
	}
	defer cons.Close()

	log.WithField("queue", cfg.FulfillmentQueue).Info("[fulfill] started")

	h := worker.NewFulfillmentHandler(app.Fulfillment)
	if err := cons.Run(ctx, h.Handle); err != nil {
		log.WithError(err).Error("[fulfill] run error")
	}
	log.Info("[fulfill] stopped")
}
