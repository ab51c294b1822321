package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/eventflow/internal/adapter/cache"
	"github.com/srgjo27/eventflow/internal/adapter/mailer"
	"github.com/srgjo27/eventflow/internal/adapter/mq"
	"github.com/srgjo27/eventflow/internal/adapter/repository/memory"
	"github.com/srgjo27/eventflow/internal/adapter/repository/postgres"
	"github.com/srgjo27/eventflow/internal/core/artifact"
	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/core/services"
	"github.com/srgjo27/eventflow/internal/platform/clock"
	"github.com/srgjo27/eventflow/internal/platform/config"
	"github.com/srgjo27/eventflow/internal/platform/database"
	"github.com/srgjo27/eventflow/migrations"
)

// App holds the wired services shared by the API and the fulfillment worker.
type App struct {
	Purchases    *services.PurchaseService
	Fulfillment  *services.FulfillmentService
	Availability *services.AvailabilityService

	closers []func() error
}

// Close releases every connection opened by Build, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

type stores struct {
	catalog   ports.CatalogRepository
	inventory ports.InventoryStore
	tickets   ports.TicketRepository
}

// Build connects the configured adapters and wires the core services.
// Optional collaborators (Redis, RabbitMQ) are skipped when unconfigured or
// unreachable; the store is required.
func Build(ctx context.Context, cfg config.App, logger *logrus.Logger) (*App, error) {
	app := &App{}
	clk := clock.NewSystem()
	loc := cfg.Location()

	st, err := app.openStores(ctx, cfg, logger, clk)
	if err != nil {
		app.Close()
		return nil, err
	}

	var (
		availability ports.AvailabilityCache
		guard        ports.FulfillmentGuard
		publisher    ports.EventPublisher
	)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, running without availability cache and fulfillment guard")
			_ = rdb.Close()
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("redis connected")
			app.closers = append(app.closers, rdb.Close)
			availability = cache.NewAvailabilityCache(rdb, cfg.AvailabilityCacheTTL)
			guard = cache.NewFulfillmentGuard(rdb, 0)
		}
	}

	if cfg.RabbitURL != "" {
		p, err := mq.NewPublisher(cfg.RabbitURL, cfg.TicketExchange)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unreachable, integration events disabled")
		} else {
			app.closers = append(app.closers, p.Close)
			publisher = p
		}
	}

	var mail ports.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.MailTimeout,
		})
	} else {
		logger.Warn("SMTP_HOST not set, ticket emails are logged instead of sent")
		mail = mailer.NewConsole()
	}

	generator := artifact.NewGenerator(artifact.WithLocation(loc))

	issuanceOpts := []services.IssuanceOption{services.WithMaxAttempts(cfg.IssuanceMaxAttempts)}
	fulfillmentOpts := []services.FulfillmentOption{services.WithDisplayLocation(loc)}
	if availability != nil {
		issuanceOpts = append(issuanceOpts, services.WithAvailabilityCache(availability))
	}
	if guard != nil {
		fulfillmentOpts = append(fulfillmentOpts, services.WithFulfillmentGuard(guard, cfg.FulfillmentLockTTL))
	}
	if publisher != nil {
		issuanceOpts = append(issuanceOpts, services.WithIssuancePublisher(publisher))
		fulfillmentOpts = append(fulfillmentOpts, services.WithFulfillmentPublisher(publisher))
	}

	issuance := services.NewIssuanceService(st.catalog, st.inventory, issuanceOpts...)
	app.Fulfillment = services.NewFulfillmentService(st.tickets, st.catalog, generator, mail, clk, fulfillmentOpts...)
	app.Purchases = services.NewPurchaseService(issuance, app.Fulfillment, generator, publisher, loc)
	app.Availability = services.NewAvailabilityService(st.catalog, availability)

	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.App, logger *logrus.Logger, clk clock.Clock) (stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("STORE_DRIVER=memory, data is kept in process and lost on exit")
		st := memory.NewStore(clk)
		seedDemo(st)
		return stores{catalog: st, inventory: st, tickets: st}, nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
	}, logger)
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, db.Close)

	if cfg.RunMigrations {
		// Migrations run through a short-lived pgx pool; the repositories stay on lib/pq.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, fmt.Errorf("migration pool: %w", err)
		}
		err = migrations.Apply(ctx, pool)
		pool.Close()
		if err != nil {
			return stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	return stores{
		catalog:   postgres.NewCatalogRepository(db),
		inventory: postgres.NewInventoryStore(db),
		tickets:   postgres.NewTicketRepository(db),
	}, nil
}

func seedDemo(st *memory.Store) {
	st.PutBuyer(domain.Buyer{ID: "demo-buyer", Name: "Demo Buyer", Email: "demo@eventflow.local"})
	st.PutEvent(domain.Event{ID: "demo-event", Title: "Demo Night"})
	st.PutBatch(domain.Batch{ID: "demo-batch", EventID: "demo-event", Name: "First batch", Price: 50, Quantity: 100})
}
