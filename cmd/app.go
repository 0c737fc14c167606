package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/checkout"
	"github.com/frahmantamala/moviemix/internal/core/events"
	"github.com/frahmantamala/moviemix/internal/fulfillment"
	fulfillmentpostgres "github.com/frahmantamala/moviemix/internal/fulfillment/postgres"
	markerpostgres "github.com/frahmantamala/moviemix/internal/marker/postgres"
	"github.com/frahmantamala/moviemix/internal/order"
	orderpostgres "github.com/frahmantamala/moviemix/internal/order/postgres"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/verification"
	"github.com/frahmantamala/moviemix/pkg/messaging"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// App holds the wiring shared by the server, worker and operator commands.
type App struct {
	Config    *internal.Config
	Logger    *slog.Logger
	SQL       *sqlx.DB
	DB        *gorm.DB
	Bus       *events.EventBus
	Publisher *messaging.RabbitPublisher

	Gateway    *paymentgateway.Client
	Orders     order.RepositoryAPI
	Markers    *markerpostgres.MarkerStore
	Service    *order.Service
	Poller     *verification.Poller
	Dispatcher *verification.Dispatcher
}

func buildApp(cfg *internal.Config, log *slog.Logger) (*App, error) {
	sqlDB, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{TranslateError: true})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		SQL:    sqlDB,
		DB:     db,
		Bus:    events.NewEventBus(log),
	}

	app.Bus.SubscribeAll(events.LifecycleEventTypes, func(ctx context.Context, event events.Event) error {
		log.Info("payment lifecycle event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})

	if cfg.Messaging.Enabled {
		publisher, err := messaging.NewRabbitPublisher(cfg.Messaging.URL, cfg.Messaging.Exchange)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect message broker: %w", err)
		}
		app.Publisher = publisher
		messaging.NewForwarder(publisher, log).Attach(app.Bus)
		log.Info("forwarding lifecycle events", "exchange", cfg.Messaging.Exchange)
	}

	app.Gateway = paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:           cfg.Payment.BaseURL,
		ClientID:          cfg.Payment.ClientID,
		ClientSecret:      cfg.Payment.ClientSecret,
		APIVersion:        cfg.Payment.APIVersion,
		HostedCheckoutURL: cfg.Payment.HostedCheckoutURL,
		RequestTimeout:    cfg.Payment.RequestTimeout,
	}, log)

	app.Orders = orderpostgres.NewOrderRepository(db)
	app.Markers = markerpostgres.NewMarkerStore(db)
	recorder := fulfillment.NewRecorder(fulfillmentpostgres.NewFulfillmentRepository(db), log)

	var widget checkout.Widget
	if cfg.Payment.EmbeddedCheckout {
		sdk, err := checkout.NewSDKWidget(cfg.Payment.CheckoutEnvironment)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to configure checkout widget: %w", err)
		}
		widget = sdk
	}

	app.Service = order.NewService(
		app.Gateway,
		app.Orders,
		app.Markers,
		checkout.NewTrigger(widget, log),
		order.ServiceConfig{ReturnURL: cfg.Payment.ReturnURL, NotifyURL: cfg.Payment.NotifyURL},
		log,
	)

	app.Poller, err = verification.NewPoller(
		app.Gateway,
		app.Markers,
		app.Orders,
		recorder,
		app.Bus,
		verification.PolicyFromConfig(cfg.Verification),
		log,
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Dispatcher = verification.NewDispatcher(app.Poller, app.Markers, verification.DispatcherConfig{
		Workers:   cfg.Verification.Workers,
		QueueSize: cfg.Verification.QueueSize,
	}, log)

	return app, nil
}

// Close drains pending event deliveries, then releases the broker and
// database connections.
func (a *App) Close() {
	if a.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Bus.Close(ctx); err != nil {
			a.Logger.Warn("event deliveries still pending at shutdown", "error", err)
		}
		cancel()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error("message broker close error", "error", err)
		}
	}
	if a.SQL != nil {
		if err := a.SQL.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
