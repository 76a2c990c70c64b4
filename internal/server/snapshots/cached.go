package snapshots

import (
	"bytes"
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cached serves repeated reads from memory for ttl. Writes go through to
// the wrapped Backend; a failed write evicts the path.
type Cached struct {
	inner Backend
	cache *cache.Cache
}

func NewCached(inner Backend, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache.New(ttl, 2*ttl)}
}

func (c *Cached) Get(ctx context.Context, path string) ([]byte, error) {
	if v, ok := c.cache.Get(path); ok {
		return bytes.Clone(v.([]byte)), nil
	}

	data, err := c.inner.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(path, bytes.Clone(data))
	return data, nil
}

func (c *Cached) Put(ctx context.Context, path string, data []byte, user string) error {
	if err := c.inner.Put(ctx, path, data, user); err != nil {
		c.cache.Delete(path)
		return err
	}
	c.cache.SetDefault(path, bytes.Clone(data))
	return nil
}

func (c *Cached) Delete(ctx context.Context, path string) error {
	c.cache.Delete(path)
	return c.inner.Delete(ctx, path)
}

func (c *Cached) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}
