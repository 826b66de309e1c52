package kv

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"
)

type redisStore struct {
	client rueidis.Client
}

// OpenRedis connects to the redis server at address.
func OpenRedis(address string) (Store, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("kv: redis address required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{address},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return &redisStore{client: client}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *redisStore) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Do(ctx, r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()).Error()
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	return r.client.Do(ctx, r.client.B().Del().Key(key).Build()).Error()
}

func (r *redisStore) Close() error {
	r.client.Close()
	return nil
}
