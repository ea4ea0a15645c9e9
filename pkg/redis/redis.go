package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/ikkim/gigmarket-backend/config"
	"github.com/ikkim/gigmarket-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// ErrLockHeld is returned when another worker holds the key.
var ErrLockHeld = errors.New("lock held by another worker")

// KeyLocker serializes work on a key across service instances.
type KeyLocker struct {
	locker *redislock.Client
	prefix string
	ttl    time.Duration
}

// NewKeyLocker builds a locker on rdb. Keys are namespaced with prefix.
func NewKeyLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *KeyLocker {
	return &KeyLocker{
		locker: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Acquire obtains the lock for key without retrying. The returned func
// releases it; release failures are logged, the lock then expires on its TTL.
func (l *KeyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	lock, err := l.locker.Obtain(ctx, lockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", lockKey, err)
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("Failed to release redis lock", map[string]interface{}{
				"key":   lockKey,
				"error": err.Error(),
			})
		}
	}, nil
}
