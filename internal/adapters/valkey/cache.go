package valkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// localPrefix marks reference data that may be served from the client-side
// cache. One-time codes and reset tokens always go to the server.
const localPrefix = "locations:"

// Options configures the cache.
type Options struct {
	// Prefix namespaces every key, e.g. "taxiportal:".
	Prefix string
	// LocalTTL enables server-assisted client-side caching for location
	// keys. Zero disables it.
	LocalTTL time.Duration
}

// Cache implements ports.CacheService on Valkey.
type Cache struct {
	client valkey.Client
	opts   Options
}

func New(addr string, opts Options) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: opts.LocalTTL <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, opts: opts}, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var res valkey.ValkeyResult
	if c.opts.LocalTTL > 0 && strings.HasPrefix(key, localPrefix) {
		res = c.client.DoCache(ctx, c.client.B().Get().Key(c.opts.Prefix+key).Cache(), c.opts.LocalTTL)
	} else {
		res = c.client.Do(ctx, c.client.B().Get().Key(c.opts.Prefix+key).Build())
	}
	b, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrMiss
	}
	return b, err
}

// Set stores value for ttlSeconds. A non-positive TTL keeps the key until
// it is deleted.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	set := c.client.B().Set().Key(c.opts.Prefix + key).Value(valkey.BinaryString(value))
	if ttlSeconds <= 0 {
		return c.client.Do(ctx, set.Build()).Error()
	}
	return c.client.Do(ctx, set.Ex(time.Duration(ttlSeconds)*time.Second).Build()).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.opts.Prefix+key).Build()).Error()
}

// Ping is used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Cache) Close() { c.client.Close() }
