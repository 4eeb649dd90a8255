package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

const pingTimeout = 5 * time.Second

type Backend struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "address", cfg.Address, "error", err)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	log.Info("Successfully connected to Redis", "address", cfg.Address)
	return rdb, nil
}

func NewBackend(client *redis.Client, log *logger.Logger) *Backend {
	return &Backend{client: client, logger: log}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		b.logger.Error("Redis Get operation failed", "key", key, "error", err)
		return nil, fmt.Errorf("%w: redis get %q: %v", domain.ErrCacheUnavailable, key, err)
	}
	return val, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		b.logger.Error("Redis Set operation failed", "key", key, "error", err)
		return fmt.Errorf("%w: redis set %q: %v", domain.ErrCacheUnavailable, key, err)
	}
	b.logger.Debug("Redis Set operation successful", "key", key, "ttl", ttl)
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		b.logger.Error("Redis Del operation failed", "key", key, "error", err)
		return fmt.Errorf("%w: redis del %q: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
