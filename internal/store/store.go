// Package store holds the persistence adapters: Postgres repositories for projects and
// grants, and the recommendation cache in Postgres, Redis or memory.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/recommend"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the "cache" configuration section.
type Config struct {
	Backend string `mapstructure:"backend"`
	// TTL applies to the redis backend only. Zero keeps entries until replaced.
	TTL time.Duration `mapstructure:"ttl"`
}

// NewRecommendationStore picks the backend named in cfg. pg and rdb may be nil when the
// backend does not need them.
func NewRecommendationStore(cfg Config, pg TxRunner, rdb redis.UniversalClient, logger *zap.Logger) (recommend.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendPostgres
	}

	switch backend {
	case BackendPostgres:
		if pg == nil {
			return nil, fmt.Errorf("cache backend %q requires a database connection", backend)
		}
		return NewRecommendations(pg, logger), nil
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("cache backend %q requires a redis connection", backend)
		}
		return NewRedisRecommendations(rdb, cfg.TTL), nil
	case BackendMemory:
		return NewMemoryRecommendations(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
