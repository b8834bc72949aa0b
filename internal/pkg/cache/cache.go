package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

// Key layout of the read model. Values are JSON. A reader that loaded its
// rows before a commit may write them back after the commit invalidated the
// key, so the queue snapshot, which changes with every payment, lives the
// shortest.
const (
	KeyPlans                = "agape:plans"
	KeyPlanTemplate         = "agape:plan:%d"
	KeyWalletsTemplate      = "agape:wallets:%d"
	KeyPlanQueueTemplate    = "agape:plan_queue:%d"
	PlansExpiration         = 24 * time.Hour
	WalletsExpiration       = 5 * time.Minute
	PlanQueueExpiration     = 30 * time.Second
	defaultOperationTimeout = 500 * time.Millisecond
)

func PlanKey(planID uint) string { return fmt.Sprintf(KeyPlanTemplate, planID) }
func WalletsKey(userID uint) string { return fmt.Sprintf(KeyWalletsTemplate, userID) }
func PlanQueueKey(planID uint) string { return fmt.Sprintf(KeyPlanQueueTemplate, planID) }

// SetupCache connects to the Redis compatible cache server. A failed ping is
// only logged; the read model then falls through to the database.
func SetupCache() *redis.Client {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache: %v", err)
	} else {
		log.Infof("[Cache] Connected to cache: %s", pong)
	}
	return client
}

// LimiterStorage returns the fiber storage that holds rate limit counters, or
// nil when no cache host is configured and counters stay in process memory.
// It uses its own database so flushing the read model keeps the counters.
func LimiterStorage() fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "")
	if host == "" {
		return nil
	}
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: env.GetEnvInt("LIMITER_CACHE_DB", 1),
		Reset:    false,
	})
}

// Store is a cache-aside helper. It is never a source of truth: failures
// are logged and reported as misses. A nil *Store is a disabled cache.
type Store struct {
	client  *redis.Client
	timeout time.Duration
}

// New wraps a redis client
func New(client *redis.Client) *Store {
	if client == nil {
		return nil
	}
	return &Store{client: client, timeout: defaultOperationTimeout}
}

// GetJSON decodes the cached value at key into dst. It reports false on a
// miss, a decode problem or an unreachable cache.
func (s *Store) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if s == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Cache] get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Warnf("[Cache] decode %s: %v", key, err)
		return false
	}
	return true
}

// SetJSON stores v at key with the given expiration.
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warnf("[Cache] encode %s: %v", key, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, key, raw, expiration).Err(); err != nil {
		log.Warnf("[Cache] set %s: %v", key, err)
	}
}

// Invalidate removes keys. Called by writers right after their transaction commits.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if s == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		log.Warnf("[Cache] invalidate %v: %v", keys, err)
	}
}
