package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
)

// RedisStorage is a DurableStorage backed by one Redis hash, for
// deployments that colocate a Redis instance with the client host. All
// entries live under a single hash key so a session's outbox can be
// inspected or dropped as a unit.
type RedisStorage struct {
	client  *redis.Client
	hashKey string
}

// NewRedisStorage builds storage over the given client. hashKey scopes one
// session's outbox; different sessions use different keys.
func NewRedisStorage(client *redis.Client, hashKey string) *RedisStorage {
	return &RedisStorage{client: client, hashKey: hashKey}
}

var _ DurableStorage = (*RedisStorage)(nil)

func (s *RedisStorage) SetItem(ctx context.Context, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.hashKey, key, value).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.HGet(ctx, s.hashKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hashKey, key).Err(); err != nil {
		return fmt.Errorf("redis remove %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	all, err := s.client.HKeys(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list keys: %w", err)
	}
	var keys []string
	for _, key := range all {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
