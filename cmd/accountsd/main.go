package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/provider/auth0"
	"github.com/goliatone/go-accounts/provider/local"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

type App struct {
	config   *gconfig.Container[*config.Config]
	logger   *glog.BaseLogger
	db       *bun.DB
	provider accounts.IdentityProvider
	srv      router.Server[*fiber.App]
}

func (a *App) Config() *config.Config {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("accountsd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(config.Defaults()).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	if err := cfg.Raw().LoadEnv(); err != nil {
		panic(err)
	}

	if err := cfg.Raw().Validate(); err != nil {
		panic(err)
	}

	if cfg.Raw().Server.Debug {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.db.Close()

	if err := WithIdentityProvider(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAccountRoutes(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().Server.Address)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.Config().Persistence

	var (
		sqldb   *sql.DB
		dialect schema.Dialect
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		dialect = pgdialect.New()
	default:
		var err error
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to open database").
				WithMetadata(map[string]any{"driver": cfg.Driver})
		}
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "database connection failed").
			WithMetadata(map[string]any{"driver": cfg.Driver})
	}
	client.SetLogger(app.GetLogger("persistence"))

	if cfg.Migrate {
		var extra []accounts.MigrationSource
		if app.Config().Provider.Kind == config.ProviderLocal {
			extra = append(extra, local.Migrations())
		}
		if err := accounts.Migrate(ctx, client, app.GetLogger("migrations"), extra...); err != nil {
			return err
		}
	}

	app.db = client.DB()
	return nil
}

func WithIdentityProvider(ctx context.Context, app *App) error {
	cfg := app.Config()

	switch cfg.Provider.Kind {
	case config.ProviderAuth0:
		provider, err := auth0.NewIdentityProvider(ctx, cfg.Auth0.ProviderConfig())
		if err != nil {
			return err
		}
		app.provider = provider.WithLogger(app.GetLogger("provider:auth0"))
	default:
		provider, err := local.New(app.db, cfg.Local.ProviderConfig())
		if err != nil {
			return err
		}
		app.provider = provider.WithLogger(app.GetLogger("provider:local"))
	}

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.Config().Server

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           cfg.AppName,
			BodyLimit:         cfg.BodyLimit,
			UnescapePath:      true,
			EnablePrintRoutes: cfg.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
	return nil
}

func WithAccountRoutes(ctx context.Context, app *App) error {
	cfg := app.Config()

	opts := []accounts.Option{
		accounts.WithLogger(app.GetLogger("accounts")),
		accounts.WithCallTimeout(cfg.Provider.GetCallTimeout()),
		accounts.WithCompensationTimeout(cfg.Provider.GetCompensationTimeout()),
		accounts.WithRefreshTokenRequired(cfg.Provider.RequireRefreshToken),
		accounts.WithFeatureGate(cfg.Features.Gate()),
		accounts.WithActivitySink(accounts.ActivitySinkFunc(func(ctx context.Context, event accounts.ActivityEvent) error {
			record := activitymap.Normalize(event)
			app.GetLogger("activity:"+record.Channel).Info(record.Verb,
				"actor_id", record.ActorID,
				"object_type", record.ObjectType,
				"object_id", record.ObjectID,
				"metadata", record.Metadata,
				"occurred_at", record.OccurredAt,
			)
			return nil
		})),
		accounts.WithRegistrationObserver(func(ctx context.Context, t accounts.RegistrationTransition) {
			app.GetLogger("registration").Debug("registration transition",
				"from", t.From,
				"to", t.To,
				"identity_id", t.IdentityID,
			)
		}),
	}

	profiles := accounts.NewProfileRepository(app.db)
	service := accounts.NewAccountService(app.provider, profiles, opts...)
	guard := accounts.NewAccessGuard(app.provider, opts...)

	controller := accounts.NewAccountsController(service, guard, app.GetLogger("accounts:http"))
	controller.Debug = cfg.Server.Debug
	controller.RegisterRoutes(app.srv.Router().Group("/auth"))

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
