package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// RedisClient is the subset of go-redis client methods used by Cached.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CacheConfig provides configuration options for creating a Cached
// transform.
type CacheConfig struct {
	// Prefix is prepended to every key.
	Prefix string

	// TTL is the expiration of cached results. If zero, results never
	// expire.
	TTL time.Duration

	// Name is the transform name used in the key. If empty, the name of
	// the wrapped transform is used; one of the two is required.
	Name string
}

// Cached wraps another transform and stores its results in Redis, keyed by
// the transform name, the provider name and the sample's hash. Create one
// with NewCached.
//
// Cached results are returned as json.RawMessage; fresh results are
// returned as the wrapped transform produced them. Samples without a hash,
// or applied without a provider, are never cached.
type Cached struct {
	transform batch.Transform
	client    RedisClient
	prefix    string
	ttl       time.Duration
	name      string
}

// NewCached creates a Cached transform. It returns an error if no name can
// be determined.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cached, err := transform.NewCached(t, client, transform.CacheConfig{
//		Prefix: "malbatch:",
//		TTL:    24 * time.Hour,
//	})
func NewCached(t batch.Transform, client RedisClient, config CacheConfig) (*Cached, error) {
	if t == nil {
		return nil, errors.New("invalid cache config: transform cannot be nil")
	}
	if client == nil {
		return nil, errors.New("invalid cache config: client cannot be nil")
	}

	name := config.Name
	if name == "" {
		name = Name(t)
	}
	if name == "" {
		return nil, errors.New("invalid cache config: transform has no name")
	}

	return &Cached{
		transform: t,
		client:    client,
		prefix:    config.Prefix,
		ttl:       config.TTL,
		name:      name,
	}, nil
}

// Apply implements the batch.Transform interface.
func (c *Cached) Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error) {
	hash := s.Hash()
	if hash == "" || p == nil {
		return c.transform.Apply(ctx, p, s)
	}
	key := c.Key(p.Name(), hash)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return json.RawMessage(cached), nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	v, err := c.transform.Apply(ctx, p, s)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("cache set %s: %w", key, err)
	}

	return v, nil
}

// Key returns the Redis key for the sample with the given hash in the named
// provider. Derived datasets share hashes with their base dataset, so the
// provider is part of the key.
func (c *Cached) Key(provider, hash string) string {
	return c.prefix + c.name + ":" + provider + ":" + hash
}

// TransformName returns the name of the wrapped transform.
func (c *Cached) TransformName() string {
	return Name(c.transform)
}
