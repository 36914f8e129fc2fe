package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/mesohops/internal/config"
)

// Open builds the run store selected by cfg. Remote backends are wrapped in a breaker.
func Open(ctx context.Context, cfg *config.RunConfig) (RunStore, error) {
	sc := cfg.Store
	switch sc.Backend {
	case config.StoreMemory:
		return NewMemoryStore(), nil

	case config.StoreFile:
		return NewFileStore(sc.Dir)

	case config.StoreRedis:
		rs, err := NewRedisStore(ctx, RedisOptions{
			Addr:    sc.RedisAddr,
			DB:      sc.RedisDB,
			Prefix:  sc.Prefix,
			TTL:     sc.TTL,
			Timeout: sc.Timeout,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", sc.RedisAddr).Msg("Redis run store connected")
		return NewBreakerStore("redis", rs, cfg.Breaker.FailureThreshold, cfg.Breaker.OpenTimeout), nil

	case config.StorePostgres:
		ps, err := NewPostgresStore(ctx, sc.DSN, sc.Timeout)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Postgres run store connected")
		return NewBreakerStore("postgres", ps, cfg.Breaker.FailureThreshold, cfg.Breaker.OpenTimeout), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}
