// Package cache provides a Redis-backed cache for generated explanations.
// Explanations for the same frozen assessment are identical, so caching them
// saves repeated chat completion calls without affecting determinism.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// ExplanationCache stores rendered explanations keyed by the assessment they
// annotate. A nil *ExplanationCache is a valid no-op cache.
type ExplanationCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// cachedExplanation wraps the payload with expiry metadata.
type cachedExplanation struct {
	Explanation *domain.Explanation `json:"explanation"`
	CachedAt    time.Time           `json:"cached_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// NewExplanationCache connects to Redis and verifies the connection.
func NewExplanationCache(cfg domain.CacheConfig, logger *logrus.Logger) (*ExplanationCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &ExplanationCache{
		redis:      client,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}, nil
}

// Get retrieves a cached explanation for the given assessment result.
// Returns (nil, false, nil) on a miss.
func (c *ExplanationCache) Get(ctx context.Context, result *domain.RiskAssessmentResult) (*domain.Explanation, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	key := explanationKey(result)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get explanation cache: %w", err)
	}

	var cached cachedExplanation
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Explanation, true, nil
}

// Set caches an explanation for the given assessment result.
func (c *ExplanationCache) Set(ctx context.Context, result *domain.RiskAssessmentResult, explanation *domain.Explanation) error {
	if c == nil {
		return nil
	}
	cached := cachedExplanation{
		Explanation: explanation,
		CachedAt:    time.Now(),
		ExpiresAt:   time.Now().Add(c.defaultTTL),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached explanation: %w", err)
	}
	if err := c.redis.Set(ctx, explanationKey(result), data, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set explanation cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *ExplanationCache) Close() error {
	if c == nil {
		return nil
	}
	return c.redis.Close()
}

// explanationKey derives a stable key from the fields that determine the
// explanation's content.
func explanationKey(result *domain.RiskAssessmentResult) string {
	material := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		result.Gene, result.Drug, result.Diplotype.String(),
		result.Phenotype, result.RiskLabel, result.Severity)
	for _, v := range result.DetectedVariants {
		material += "|" + v.RSID
	}
	sum := sha256.Sum256([]byte(material))
	return fmt.Sprintf("pharmaguard:explanation:%x", sum[:16])
}
