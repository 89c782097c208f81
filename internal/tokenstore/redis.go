package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"supplydash/internal/config"
)

// redisClient is the subset of redis.Cmdable the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the token under a single key with no expiry, for
// deployments running more than one replica.
type RedisStore struct {
	client redisClient
	key    string
	addr   string
}

// NewRedisStore connects lazily; the first command surfaces connection errors.
func NewRedisStore(cfg config.RedisStoreConfig) (*RedisStore, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	key := cfg.Key
	if key == "" {
		key = config.DefaultRedisKey
	}
	return &RedisStore{client: redis.NewClient(opts), key: key, addr: opts.Addr}, nil
}

func newRedisStoreWithClient(client redisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key, addr: "test"}
}

func (s *RedisStore) Describe() string {
	return fmt.Sprintf("redis:%s/%s", s.addr, s.key)
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		slog.Warn("SECURITY_AUDIT: refresh token persist failed",
			"event", "refresh_token_store_failed",
			"key", s.key,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to store token in redis: %w", err)
	}
	slog.Info("SECURITY_AUDIT: refresh token stored",
		"event", "refresh_token_stored",
		"key", s.key,
	)
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token from redis: %w", err)
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	slog.Info("SECURITY_AUDIT: refresh token cleared",
		"event", "refresh_token_cleared",
		"key", s.key,
	)
	return nil
}
