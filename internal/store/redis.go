package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/grant-recommender/internal/recommend"
)

const redisKeyPrefix = "grant-recommender:recommendations:"

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisRecommendations keeps each project's set as one JSON document, so a replace is a
// single atomic SET.
type RedisRecommendations struct {
	client redisKV
	ttl    time.Duration
}

func NewRedisRecommendations(client redisKV, ttl time.Duration) *RedisRecommendations {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisRecommendations{client: client, ttl: ttl}
}

func (s *RedisRecommendations) Replace(ctx context.Context, projectID string, recs []*recommend.Recommendation) error {
	payload, err := json.Marshal(stripGrants(recs))
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+projectID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store recommendations: %w", err)
	}
	return nil
}

func (s *RedisRecommendations) List(ctx context.Context, projectID string, limit int) ([]*recommend.Recommendation, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+projectID).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*recommend.Recommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recommendations: %w", err)
	}

	var recs []*recommend.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	sortByScore(recs)
	return truncate(recs, limit), nil
}
