package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/config"
	"family-ledger-go/internal/db"
	aggregationdomain "family-ledger-go/internal/domain/aggregation"
	ledgerdomain "family-ledger-go/internal/domain/ledger"
	lifecycledomain "family-ledger-go/internal/domain/lifecycle"
	"family-ledger-go/internal/events"
	"family-ledger-go/internal/gateway"
	"family-ledger-go/internal/repository/inmemory"
	snapshotsrepo "family-ledger-go/internal/repository/snapshots"
	"family-ledger-go/internal/transport/httpserver"
	"family-ledger-go/internal/transport/httpserver/handler"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	adminhandler "family-ledger-go/internal/transport/httpserver/handler/admin"
	dashboardhandler "family-ledger-go/internal/transport/httpserver/handler/dashboard"
	ledgerhandler "family-ledger-go/internal/transport/httpserver/handler/ledger"
	personalhandler "family-ledger-go/internal/transport/httpserver/handler/personal"
	"family-ledger-go/pkg/logger"
	"gorm.io/gorm"
)

const (
	memorySnapshotsMax  = 500
	startupLoginTimeout = 10 * time.Second
)

type App struct {
	cfg        config.Config
	session    *gateway.Session
	httpServer *http.Server
	router     http.Handler
	db         *gorm.DB
	publisher  *events.Publisher
}

func New(log logger.Logger) (*App, error) {
	log = logger.OrNop(log)

	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig wires the application from an already validated config.
func NewWithConfig(cfg config.Config, log logger.Logger) (*App, error) {
	log = logger.OrNop(log)
	app := &App{cfg: cfg}

	log.Info("app: initializing gateway client", "base_url", cfg.Gateway.BaseURL)
	session := gateway.NewSession()
	app.session = session
	client, err := gateway.New(gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		Timeout:     cfg.Gateway.Timeout,
		RefreshSkew: cfg.Gateway.RefreshSkew,
	}, session, log)
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(client, session, log)

	log.Info("app: initializing snapshot store", "driver", cfg.Store.Driver)
	snapshots, err := app.snapshotRepository(log)
	if err != nil {
		return nil, err
	}

	var publisher lifecycledomain.Publisher
	if cfg.AMQP.URL != "" {
		log.Info("app: connecting to broker", "exchange", cfg.AMQP.Exchange)
		app.publisher, err = events.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		publisher = app.publisher
	}

	ledgerService := ledgerdomain.NewService(client, store, log).
		WithCategoriesCache(inmemory.NewInMemoryCategoriesCache(), ledgerdomain.DefaultCategoriesTTL)
	controller := lifecycledomain.NewController(client, store, publisher, log)
	aggregationService := aggregationdomain.NewService(store, client, snapshots, aggregationdomain.Config{
		SnapshotsEnabled: cfg.Dashboard.SnapshotsEnabled,
		RecentIncomes:    cfg.Dashboard.RecentIncomes,
	}, log)

	handlers := handler.New(
		commonhandler.New(client, store, log),
		ledgerhandler.New(ledgerService, store, client, log),
		personalhandler.New(controller, store, client, log),
		dashboardhandler.New(aggregationService, log),
		adminhandler.New(ledgerdomain.NewUserService(client, log), log),
	)

	log.Info("app: initializing router")
	app.router = httpserver.NewRouter(cfg, handlers, session, log)
	app.httpServer = httpserver.New(cfg, app.router)

	if cfg.Gateway.Username != "" {
		ctx, cancel := context.WithTimeout(context.Background(), startupLoginTimeout)
		defer cancel()
		if _, err := client.Login(ctx, ledgerdomain.Credentials{Username: cfg.Gateway.Username, Password: cfg.Gateway.Password}); err != nil {
			log.BusinessError("app: startup login failed, waiting for /api/session/login", err, "username", cfg.Gateway.Username)
		}
	}

	return app, nil
}

func (a *App) snapshotRepository(log logger.Logger) (aggregationdomain.SnapshotRepository, error) {
	if a.cfg.Store.Driver == config.StoreDriverMemory {
		return inmemory.NewSnapshotRepository(memorySnapshotsMax), nil
	}

	if err := db.Migrate(a.cfg, log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	gormDB, err := db.Open(a.cfg, log)
	if err != nil {
		return nil, err
	}
	a.db = gormDB
	return snapshotsrepo.NewGorm(gormDB), nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Authenticated reports whether the gateway session is active.
func (a *App) Authenticated() bool {
	return a.session.Authenticated()
}

// Handler is the router without the listener, for in-process use.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := db.Close(a.db); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
