package reorg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chainscan/internal/model"
)

// RedisStore is a BlockStore backed by Redis, for watchers that must
// survive restarts without rebuilding the header window from the node.
// Headers live under prefix:block:<number>; the highest stored height
// under prefix:last.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection settings for the block store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "chainscan"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) blockKey(number uint64) string {
	return fmt.Sprintf("%s:block:%d", s.keyPrefix, number)
}

func (s *RedisStore) lastKey() string {
	return s.keyPrefix + ":last"
}

func (s *RedisStore) Get(ctx context.Context, number uint64) (model.BlockHeader, bool, error) {
	data, err := s.client.Get(ctx, s.blockKey(number)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.BlockHeader{}, false, nil
	}
	if err != nil {
		return model.BlockHeader{}, false, fmt.Errorf("redis get: %w", err)
	}

	var header model.BlockHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return model.BlockHeader{}, false, fmt.Errorf("parse header: %w", err)
	}
	return header, true, nil
}

func (s *RedisStore) Put(ctx context.Context, header model.BlockHeader) error {
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := s.client.Set(ctx, s.blockKey(header.Number), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	last, has, err := s.LastBlock(ctx)
	if err != nil {
		return err
	}
	if !has || header.Number > last {
		if err := s.client.Set(ctx, s.lastKey(), header.Number, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis set last: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, number uint64) error {
	if err := s.client.Del(ctx, s.blockKey(number)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	last, has, err := s.LastBlock(ctx)
	if err != nil {
		return err
	}
	if has && number == last {
		// Walk down to the next stored header. The window is bounded,
		// so give up after a few thousand misses and drop the marker.
		found := false
		for n := number; n > 0 && number-n < 4096; n-- {
			exists, err := s.client.Exists(ctx, s.blockKey(n-1)).Result()
			if err != nil {
				return fmt.Errorf("redis exists: %w", err)
			}
			if exists > 0 {
				if err := s.client.Set(ctx, s.lastKey(), n-1, s.ttl).Err(); err != nil {
					return fmt.Errorf("redis set last: %w", err)
				}
				found = true
				break
			}
		}
		if !found {
			if err := s.client.Del(ctx, s.lastKey()).Err(); err != nil {
				return fmt.Errorf("redis del last: %w", err)
			}
		}
	}
	return nil
}

func (s *RedisStore) LastBlock(ctx context.Context) (uint64, bool, error) {
	val, err := s.client.Get(ctx, s.lastKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get last: %w", err)
	}
	last, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse last block: %w", err)
	}
	return last, true, nil
}

func (s *RedisStore) Prune(ctx context.Context, before uint64) error {
	if before == 0 {
		return nil
	}
	// The window is small, so deleting by key is cheaper than a scan.
	keys := make([]string, 0, 64)
	for n := before; n > 0 && before-n < 4096; n-- {
		keys = append(keys, s.blockKey(n-1))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis prune: %w", err)
	}
	return nil
}
