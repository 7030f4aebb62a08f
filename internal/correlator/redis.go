package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending requests in Redis so several harness instances can
// share form round trips. Expiry is left to Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(opts *redis.Options, prefix string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) Create(ctx context.Context, payload url.Values) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store pending request: %w", err)
	}
	return id, nil
}

// Consume relies on GETDEL so two concurrent consumers cannot both win
func (s *RedisStore) Consume(ctx context.Context, id string) (url.Values, error) {
	if id == "" {
		return nil, notFound(id)
	}
	data, err := s.client.GetDel(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to consume pending request: %w", err)
	}

	var payload url.Values
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode pending request: %w", err)
	}
	return payload, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
