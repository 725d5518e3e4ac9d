package main

import (
	"context"
	"fmt"
	stdslog "log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/rwcache"
	"github.com/unkn0wn-root/rwcache/codec"
	asynchook "github.com/unkn0wn-root/rwcache/hooks/async"
	"github.com/unkn0wn-root/rwcache/internal/blog"
	"github.com/unkn0wn-root/rwcache/internal/config"
	logglog "github.com/unkn0wn-root/rwcache/log/glog"
	loglogrus "github.com/unkn0wn-root/rwcache/log/logrus"
	logslog "github.com/unkn0wn-root/rwcache/log/slog"
	logzap "github.com/unkn0wn-root/rwcache/log/zap"
	"github.com/unkn0wn-root/rwcache/promhooks"
	pr "github.com/unkn0wn-root/rwcache/provider"
	"github.com/unkn0wn-root/rwcache/provider/bigcache"
	"github.com/unkn0wn-root/rwcache/provider/memcache"
	"github.com/unkn0wn-root/rwcache/provider/memory"
	"github.com/unkn0wn-root/rwcache/provider/postgres"
	"github.com/unkn0wn-root/rwcache/provider/redis"
	"github.com/unkn0wn-root/rwcache/provider/ristretto"
	"github.com/unkn0wn-root/rwcache/sloghooks"
	"github.com/unkn0wn-root/rwcache/verstore"
)

// app owns everything built from the config. close releases it in reverse order
// of construction.
type app struct {
	posts   rwcache.Cache[blog.Post]
	hooks   *asynchook.Hooks
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newLogrus(cfg config.LogConfig) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// cacheLogger builds the logger handed to the cache library.
func cacheLogger(cfg config.LogConfig, base *logrus.Logger, namespace string) (rwcache.Logger, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.Backend {
	case "logrus":
		return loglogrus.New(base, namespace), noop, nil
	case "zap":
		zc := zap.NewProductionConfig()
		if cfg.Level == "debug" {
			zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zl, err := zc.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		zl = zl.With(zap.String("cache", namespace))
		return logzap.Logger{L: zl}, func(context.Context) error { _ = zl.Sync(); return nil }, nil
	case "slog":
		return logslog.Logger{L: newSlog(cfg).With("cache", namespace)}, noop, nil
	case "glog":
		return logglog.Logger{}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

func newSlog(cfg config.LogConfig) *stdslog.Logger {
	var lvl stdslog.Level
	_ = lvl.UnmarshalText([]byte(cfg.Level))
	opts := &stdslog.HandlerOptions{Level: lvl}
	if cfg.Format == "json" {
		return stdslog.New(stdslog.NewJSONHandler(os.Stderr, opts))
	}
	return stdslog.New(stdslog.NewTextHandler(os.Stderr, opts))
}

func buildApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, reg prometheus.Registerer) (*app, error) {
	cdc, err := codec.Named[blog.Post](cfg.Cache.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.MaxPayload > 0 {
		cdc = codec.Limit[blog.Post]{Inner: cdc, MaxDecode: cfg.Cache.MaxPayload}
	}
	clog, closeLog, err := cacheLogger(cfg.Log, log, cfg.Cache.Namespace)
	if err != nil {
		return nil, err
	}

	a := &app{closers: []func(context.Context) error{closeLog}}
	fail := func(err error) (*app, error) {
		_ = a.close(ctx)
		return nil, err
	}

	slogHooks := sloghooks.New(newSlog(cfg.Log), sloghooks.Options{
		GapEvery:     cfg.Log.HookSampling,
		CorruptEvery: cfg.Log.HookSampling,
	})
	a.hooks = asynchook.New(rwcache.MultiHooks{promhooks.New(reg), slogHooks}, 1, 1024)
	a.closers = append(a.closers, func(context.Context) error { a.hooks.Close(); return nil })

	var rdb goredis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fail(fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err))
		}
	}

	var versions verstore.Store
	if cfg.Cache.VersionStore == "redis" {
		// owns rdb from here on and closes it with the cache
		versions = verstore.NewRedisWithTTL(rdb, cfg.Cache.Namespace, cfg.Redis.VersionTTL)
	} else if rdb != nil {
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	}

	prov, err := newProvider(ctx, cfg, rdb)
	if err != nil {
		if versions != nil {
			_ = versions.Close(ctx)
		}
		return fail(err)
	}

	mode := rwcache.RemoveLeaveGap
	if cfg.Cache.RemoveMode == "swap_last" {
		mode = rwcache.RemoveSwapLast
	}

	posts, err := rwcache.New[blog.Post](rwcache.Options[blog.Post]{
		Namespace:         cfg.Cache.Namespace,
		Provider:          prov,
		Codec:             cdc,
		Logger:            clog,
		Hooks:             a.hooks,
		Versions:          versions,
		RemoveMode:        mode,
		SkipCorrupt:       cfg.Cache.SkipCorrupt,
		MaxPageSize:       cfg.Cache.MaxPageSize,
		MaxCollectionSize: cfg.Cache.MaxCollection,
	})
	if err != nil {
		_ = prov.Close(ctx)
		if versions != nil {
			_ = versions.Close(ctx)
		}
		return fail(err)
	}
	a.posts = posts
	a.closers = append(a.closers, posts.Close)

	log.WithFields(logrus.Fields{
		"provider":      cfg.Cache.Provider,
		"codec":         cfg.Cache.Codec,
		"version_store": cfg.Cache.VersionStore,
		"remove_mode":   mode.String(),
	}).Info("cache ready")
	return a, nil
}

func newProvider(ctx context.Context, cfg *config.Config, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.Cache.Provider {
	case "memory":
		return memory.New(), nil
	case "bigcache":
		return bigcache.New(bigcache.Config{
			Shards:             cfg.Bigcache.Shards,
			MaxEntriesInWindow: cfg.Bigcache.MaxEntriesInWindow,
			MaxEntrySize:       cfg.Bigcache.MaxEntrySize,
			HardMaxCacheSizeMB: cfg.Bigcache.HardMaxCacheSizeMB,
		})
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: 64,
		})
	case "redis":
		return redis.New(redis.Config{Client: rdb})
	case "memcache":
		return memcache.New(cfg.Memcache.Servers...)
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		p, err := postgres.New(ctx, postgres.Config{
			Pool:        pool,
			TablePrefix: cfg.Postgres.TablePrefix,
			ClosePool:   true,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Cache.Provider)
	}
}
