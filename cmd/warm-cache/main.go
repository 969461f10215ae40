// Command warm-cache prepares shared state for checkout-api instances: it
// applies the database schema and fills the Redis ingredient price cache
// from the ordering backend so the first quotes skip the catalog fetch.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/backend"
	"github.com/xenking/kart-checkout/internal/domain/catalog"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
	redisstore "github.com/xenking/kart-checkout/internal/storage/redis"
)

type options struct {
	databaseURL string
	redisURL    string
	backendURL  string
	ttl         time.Duration
	invalidate  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL to migrate (or DATABASE_URL env); empty skips migrations")
	flag.StringVar(&opts.redisURL, "redis-url", "", "Redis URL (or REDIS_URL env)")
	flag.StringVar(&opts.backendURL, "backend-url", "", "Ordering backend base URL (or CHECKOUT_BACKEND_URL env)")
	flag.DurationVar(&opts.ttl, "ttl", 10*time.Minute, "lifetime of cached prices")
	flag.BoolVar(&opts.invalidate, "invalidate", false, "only drop cached prices")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.redisURL = orEnv(opts.redisURL, "REDIS_URL")
	opts.backendURL = orEnv(opts.backendURL, "CHECKOUT_BACKEND_URL")
	if opts.redisURL == "" {
		slog.Error("redis URL is required: set --redis-url or REDIS_URL")
		os.Exit(1)
	}
	if opts.backendURL == "" && !opts.invalidate {
		slog.Error("backend URL is required: set --backend-url or CHECKOUT_BACKEND_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("warm-cache failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("warm-cache completed successfully")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, opts options) error {
	if opts.databaseURL != "" {
		slog.Info("running migrations")
		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
	}

	redisOpts, err := redis.ParseURL(opts.redisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	cache := redisstore.NewPriceCache(rdb, opts.ttl)

	if opts.invalidate {
		slog.Info("invalidating cached prices")
		if err := cache.Invalidate(ctx); err != nil {
			return errors.Wrap(err, "invalidate")
		}
		return nil
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL:        opts.backendURL,
		ConnectTimeout: 3 * time.Second,
		RequestTimeout: 30 * time.Second,
	}, zap.NewNop())
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	slog.Info("fetching ingredient catalog", slog.String("backend", opts.backendURL))
	items, err := client.Ingredients(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch ingredients")
	}

	book := catalog.NewPriceBook(items)
	if err := cache.Store(ctx, book); err != nil {
		return errors.Wrap(err, "store prices")
	}
	slog.Info("cached ingredient prices", slog.Int("count", len(book)), slog.Duration("ttl", opts.ttl))
	return nil
}
