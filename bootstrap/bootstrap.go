// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/strandly/edgeguard/adapters/clock"
	"github.com/strandly/edgeguard/adapters/hasher"
	guardhttp "github.com/strandly/edgeguard/adapters/http"
	"github.com/strandly/edgeguard/adapters/idgen"
	"github.com/strandly/edgeguard/adapters/memory"
	"github.com/strandly/edgeguard/adapters/metrics"
	"github.com/strandly/edgeguard/adapters/redis"
	"github.com/strandly/edgeguard/adapters/sqlite"
	"github.com/strandly/edgeguard/app"
	"github.com/strandly/edgeguard/config"
	"github.com/strandly/edgeguard/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Guard     *app.GuardService
	Resolver  *app.Resolver
	Telemetry *app.TelemetryService

	store      ports.CounterStore
	db         *sqlite.DB // sqlite driver only
	memStore   *memory.CounterStore
	redisStore *redis.CounterStore
	janitor    *cron.Cron
}

// New creates and initializes the application from a config file path,
// with hot reload wired up.
func New(cfgPath string) (*App, error) {
	holder, err := config.NewHolder(cfgPath, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return NewWithHolder(holder)
}

// NewFromEnv creates the application from environment variables, falling
// back to the config file when it exists. No hot reload.
func NewFromEnv(cfgPath string) (*App, error) {
	cfg, err := config.LoadWithFallback(cfgPath)
	if err != nil {
		return nil, err
	}
	return build(cfg, nil)
}

// NewWithHolder creates and initializes the application from an already
// loaded config holder.
func NewWithHolder(holder *config.Holder) (*App, error) {
	return build(holder.Get(), holder)
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing edgeguard")

	a := &App{
		Logger: logger,
		Config: holder, // nil when built from env only
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initStore(cfg); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.initServices(cfg)

	if err := a.initJanitor(cfg); err != nil {
		return nil, fmt.Errorf("init janitor: %w", err)
	}

	a.initHTTPServer(cfg)
	if a.Config != nil {
		a.wireReload()
	}

	return a, nil
}

func (a *App) initStore(cfg *config.Config) error {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		a.store = sqlite.NewCounterStore(db, clock.Real{})
		a.Logger.Info().Str("dsn", cfg.Store.DSN).Msg("sqlite counter store initialized")

	case "redis":
		rs := redis.NewCounterStore(redis.Config{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		a.redisStore = rs
		a.store = rs
		a.Logger.Info().Str("addr", cfg.Store.Redis.Addr).Msg("redis counter store initialized")

	default:
		ms := memory.NewCounterStore(memory.CounterStoreConfig{
			Clock:         clock.Real{},
			SweepInterval: 5 * time.Minute,
		})
		a.memStore = ms
		a.store = ms
		a.Logger.Info().Msg("in-memory counter store initialized")
	}
	return nil
}

func (a *App) initServices(cfg *config.Config) {
	identityHasher := hasher.NewSHA256(cfg.Identity.HashSalt)

	a.Guard = app.NewGuardService(app.GuardDeps{
		Store:  a.store,
		Hasher: identityHasher,
		Clock:  clock.Real{},
	}, PolicyFromConfig(cfg), a.Logger)

	a.Resolver = app.NewResolver(hasher.Bcrypt{}, []byte(cfg.Identity.AdminTokenHash))

	a.Telemetry = app.NewTelemetryService(app.TelemetryDeps{
		Store:  a.store,
		Hasher: identityHasher,
		Clock:  clock.Real{},
		IDGen:  idgen.UUID{},
	}, cfg.Telemetry.BatchSize, cfg.Telemetry.FlushInterval, a.Logger)

	if a.Metrics != nil {
		a.Guard.SetMetrics(a.Metrics)
		a.Telemetry.SetMetrics(a.Metrics)
	}
}

// initJanitor schedules expired-row cleanup for the sqlite backend.
// Memory sweeps itself and redis expires keys natively.
func (a *App) initJanitor(cfg *config.Config) error {
	if a.db == nil || cfg.Janitor.Schedule == "" {
		return nil
	}

	store, ok := a.store.(*sqlite.CounterStore)
	if !ok {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Janitor.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := store.PurgeExpired(ctx)
		if err != nil {
			a.Logger.Error().Err(err).Msg("janitor purge failed")
			return
		}
		a.Logger.Debug().Int64("purged", n).Msg("janitor purge complete")
	})
	if err != nil {
		return fmt.Errorf("janitor schedule: %w", err)
	}

	a.janitor = c
	a.Logger.Info().Str("schedule", cfg.Janitor.Schedule).Msg("sqlite janitor scheduled")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	h := guardhttp.NewHandler(a.Guard, a.Resolver, a.Telemetry, clock.Real{}, a.Logger)
	if a.Metrics != nil {
		h.EnableMetrics(a.Metrics, cfg.Metrics.Path)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// wireReload connects config changes to the running services. Policy,
// cooldowns, budgets and the admin token apply without restart.
func (a *App) wireReload() {
	a.Config.OnChange(func(cfg *config.Config) {
		a.Guard.UpdatePolicy(PolicyFromConfig(cfg))
		a.Resolver.UpdateAdminToken([]byte(cfg.Identity.AdminTokenHash))
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
		}
		a.Logger.Info().Msg("guard policy updated from config")
	})
	a.Config.OnReloadError(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.Config != nil {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		a.Config.WatchSignals()
	}

	if a.janitor != nil {
		a.janitor.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.janitor != nil {
		<-a.janitor.Stop().Done()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Telemetry != nil {
		if err := a.Telemetry.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("telemetry close error")
		}
	}

	if a.memStore != nil {
		a.memStore.Close()
	}
	if a.redisStore != nil {
		if err := a.redisStore.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
