// internal/service/distribution/infrastructure/fingerprint_redis.go
package infrastructure

import (
	"context"
	"time"

	"tripnexus/internal/pkg/redis"
	"tripnexus/internal/service/distribution/domain/port"

	"github.com/pkg/errors"
)

// RedisFingerprintStore 把快照指纹存放在Redis中，实现 port.FingerprintStore。
type RedisFingerprintStore struct {
	client *redis.Client
}

func NewRedisFingerprintStore(client *redis.Client) *RedisFingerprintStore {
	return &RedisFingerprintStore{client: client}
}

var _ port.FingerprintStore = (*RedisFingerprintStore)(nil)

func (s *RedisFingerprintStore) GetAll(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}
	values, err := s.client.GetClient().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget fingerprints")
	}
	result := make([]string, len(keys))
	for i, v := range values {
		if str, ok := v.(string); ok {
			result[i] = str
		}
	}
	return result, nil
}

func (s *RedisFingerprintStore) SetAll(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := s.client.GetClient().Pipeline()
	for key, fp := range entries {
		pipe.Set(ctx, key, fp, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "pipeline set fingerprints")
	}
	return nil
}

func (s *RedisFingerprintStore) Invalidate(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.GetClient().Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "del fingerprints")
	}
	return nil
}
