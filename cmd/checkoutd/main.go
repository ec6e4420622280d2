// Command checkoutd serves the subscription checkout API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/checkoutkit/pkg/attemptlock"
	"github.com/dmitrymomot/checkoutkit/pkg/backend"
	"github.com/dmitrymomot/checkoutkit/pkg/config"
	"github.com/dmitrymomot/checkoutkit/pkg/gateway"
	"github.com/dmitrymomot/checkoutkit/pkg/httpserver"
	"github.com/dmitrymomot/checkoutkit/pkg/logger"
	"github.com/dmitrymomot/checkoutkit/svc/checkout"
)

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Service   string `env:"SERVICE_NAME" envDefault:"checkoutd"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	HTTP     httpserver.Config
	Redis    attemptlock.RedisConfig
	Checkout checkout.Config `envPrefix:"CHECKOUT_"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "checkoutd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOpts := []logger.Option{logger.WithEnvironment(cfg.Env, cfg.Service)}
	if cfg.LogLevel != "" {
		logOpts = append(logOpts, logger.WithLevelName(cfg.LogLevel))
	}
	if cfg.LogFormat != "" {
		logOpts = append(logOpts, logger.WithFormat(logger.ParseFormat(cfg.LogFormat)))
	}
	log := logger.New(logOpts...)
	slog.SetDefault(log)

	catalog, err := checkout.LoadCatalogFile(cfg.Checkout.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog %s: %w", cfg.Checkout.CatalogFile, err)
	}

	api, err := backend.New(cfg.Checkout.BackendURL,
		backend.WithTimeout(cfg.Checkout.BackendTimeout),
		backend.WithProfilePath(cfg.Checkout.ProfilePath),
		backend.WithUserAgent(cfg.Service),
		backend.WithLogger(log.With(logger.Component("backend"))),
	)
	if err != nil {
		return err
	}

	loader := gateway.NewLoader(
		gateway.WithScriptURL(cfg.Checkout.ScriptURL),
		gateway.WithLoaderTimeout(cfg.Checkout.ScriptTimeout),
		gateway.WithLoaderLogger(log.With(logger.Component("gateway"))),
	)

	var (
		locks  attemptlock.Locker = attemptlock.NewMemory()
		checks []httpserver.Check
	)
	if cfg.Redis.URL != "" {
		client, err := attemptlock.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		redisLocks := attemptlock.NewRedis(client, cfg.Redis.KeyPrefix)
		locks = redisLocks
		checks = append(checks, redisLocks.Ping)
		log.InfoContext(ctx, "attempt leases stored in redis")
	} else {
		log.WarnContext(ctx, "REDIS_URL not set, attempt leases are local to this process")
	}

	svc, err := checkout.NewService(cfg.Checkout, checkout.Deps{
		Catalog: catalog,
		Backend: api,
		Loader:  loader,
		Relay:   gateway.NewRelay(log.With(logger.Component("relay"))),
		Locks:   locks,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, svc.Handler(checks...))
	})
	g.Go(func() error {
		return svc.RunSweeper(gctx)
	})
	g.Go(func() error {
		// Warm the script cache; failures are retried on first purchase.
		if err := loader.Load(gctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WarnContext(gctx, "checkout script prefetch failed", logger.Error(err))
		}
		return nil
	})

	return g.Wait()
}
