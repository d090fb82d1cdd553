// Package bootstrap wires the catalog's collaborators from a shared.Config.
// Both binaries go through Build so they share one store and one match lock.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"restaurant_catalog/internal/adapters/providers"
	redisad "restaurant_catalog/internal/adapters/redis"
	"restaurant_catalog/internal/app"
	"restaurant_catalog/internal/domain"
	"restaurant_catalog/internal/matcher"
	"restaurant_catalog/internal/shared"
	"restaurant_catalog/internal/storage/memory"
	mysqlrepo "restaurant_catalog/internal/storage/mysql"
)

type Catalog interface {
	domain.CatalogStore
	domain.CatalogReader
}

type Deps struct {
	Store    Catalog
	Cache    domain.Cache
	Adapters []domain.Adapter
	Indexer  *app.IndexingService
	Query    *app.QueryService

	closers []func()
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func Build(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}

	switch strings.ToLower(cfg.Store) {
	case "memory":
		log.Warn().Msg("using in-memory catalog store; data is lost on exit")
		d.Store = memory.New()
	case "", "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		d.closers = append(d.closers, func() { _ = db.Close() })
		d.Store = mysqlrepo.New(db)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	var counter domain.RequestCounter
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR empty; caching disabled, quotas are per process")
		d.Cache = nopCache{}
		counter = providers.NewMemoryCounter(cfg.QuotaWindow)
	} else {
		rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// cache and quota errors are tolerated downstream
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		d.Cache = redisad.New(rdb, "catalog:")
		counter = redisad.NewQuotaCounter(rdb, cfg.QuotaWindow)
	}

	d.Adapters = providers.Default(
		providerConfig(cfg.Yelp, cfg.ProviderTimeout, counter),
		providerConfig(cfg.Google, cfg.ProviderTimeout, counter),
	)
	for _, a := range d.Adapters {
		log.Info().Str("source", a.Source()).Bool("configured", a.Configured()).Msg("provider adapter")
	}

	d.Indexer = app.NewIndexingService(d.Adapters, d.Store, matcher.New(cfg.Matcher), d.Cache, app.IndexingConfig{
		PageSize:   cfg.IndexPageSize,
		MaxPages:   cfg.IndexMaxPages,
		ProbeLimit: cfg.IndexProbeLimit,
	})
	d.Query = app.NewQueryService(d.Store, d.Cache, cfg.CacheTTL)
	return d, nil
}

func providerConfig(p shared.ProviderConfig, timeout time.Duration, counter domain.RequestCounter) providers.Config {
	return providers.Config{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		RPS:     p.RPS,
		Timeout: timeout,
		Quota:   p.Quota,
		Counter: counter,
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any, int) error    { return nil }
func (nopCache) Del(context.Context, string) error              { return nil }
func (nopCache) DelPrefix(context.Context, string) error        { return nil }
