// Package application wires configuration into a running set of components:
// the store, the domain service, metrics, and request limiters. Both the
// HTTP server and qrtrackctl start from Open.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/admin"
	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/database"
	"github.com/JonMunkholm/qrtrack/internal/memstore"
	"github.com/JonMunkholm/qrtrack/internal/metrics"
	"github.com/JonMunkholm/qrtrack/internal/ratelimit"
	"github.com/JonMunkholm/qrtrack/internal/schema"
	"github.com/JonMunkholm/qrtrack/internal/web"
)

// App holds the components built from one Config.
type App struct {
	Config      *config.Config
	Store       core.Store
	Service     *core.Service
	Metrics     *metrics.Metrics
	Maintenance *admin.Maintenance

	// Ping is nil for the memory store.
	Ping func(ctx context.Context) error

	db      *database.Store
	closers []func()
}

// Option adjusts Open.
type Option func(*openOptions)

type openOptions struct {
	now func() time.Time
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) { o.now = now }
}

// Open connects the configured store and builds the service on top of it.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg}
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		app.Store = memstore.New()
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		app.db = database.New(pool)
		app.Store = app.db
		app.Ping = app.db.Ping

		if cfg.Database.AutoMigrate {
			if err := app.db.Migrate(ctx); err != nil {
				app.Close()
				return nil, err
			}
			slog.Info("database schema up to date")
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	app.Metrics = metrics.New(nil)
	app.Service = core.NewService(app.Store, schema.Default(), core.Options{
		ImportBatchSize:      cfg.Import.BatchSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWaitTime:       cfg.Import.MaxWaitTime,
		Metrics:              app.Metrics,
		Now:                  o.now,
	})
	app.Maintenance = admin.New(app.Store, app.Service.Audit)
	return app, nil
}

// Migrate applies the database schema. It is a no-op for the memory store.
func (a *App) Migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Migrate(ctx)
}

// Limiters builds the per-scope request limiters for the configured backend.
func (a *App) Limiters(ctx context.Context) (web.Limiters, error) {
	rate := a.Config.Rate
	if !rate.Enabled {
		return web.Limiters{}, nil
	}

	switch rate.Backend {
	case config.RateBackendRedis:
		client, err := ratelimit.NewRedisClient(ctx, rate.RedisURL)
		if err != nil {
			return web.Limiters{}, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		slog.Info("rate limits shared through redis")
		return web.Limiters{
			API:     ratelimit.NewRedis(client, rate.RequestsPerMinute, time.Minute),
			CheckIn: ratelimit.NewRedis(client, rate.CheckInLimit, time.Minute),
			Import:  ratelimit.NewRedis(client, rate.ImportLimit, time.Minute),
		}, nil
	default:
		api := ratelimit.NewMemory(rate.RequestsPerMinute, time.Minute)
		checkIn := ratelimit.NewMemory(rate.CheckInLimit, time.Minute)
		imports := ratelimit.NewMemory(rate.ImportLimit, time.Minute)
		a.closers = append(a.closers, api.Close, checkIn.Close, imports.Close)
		return web.Limiters{API: api, CheckIn: checkIn, Import: imports}, nil
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
