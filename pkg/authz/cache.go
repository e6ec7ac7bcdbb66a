package authz

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader produces a fresh value for a cache key.
type Loader[V any] func(ctx context.Context) (V, error)

type cacheEntry[V any] struct {
	value    V
	loadedAt time.Time
}

// RefreshCache is a keyed refresh-ahead cache. A value younger than the
// fresh window is served directly. Between the fresh and stale windows the
// stale value is served while one background refresh runs. Beyond the stale
// window (or before the first load) the load is synchronous. Loader failures
// propagate so that callers fail closed rather than acting on missing data.
//
// Constructed once at process start and injected; never a package global.
type RefreshCache[V any] struct {
	fresh time.Duration
	stale time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	sf      singleflight.Group
}

// NewRefreshCache creates a cache with the given fresh and stale windows.
// stale is measured from load time and must be >= fresh.
func NewRefreshCache[V any](fresh, stale time.Duration) *RefreshCache[V] {
	if stale < fresh {
		stale = fresh
	}
	return &RefreshCache[V]{
		fresh:   fresh,
		stale:   stale,
		entries: make(map[string]cacheEntry[V]),
	}
}

// Get returns the cached value for key, honoring refresh-ahead semantics.
func (c *RefreshCache[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		age := time.Since(entry.loadedAt)
		if age < c.fresh {
			return entry.value, nil
		}
		if age < c.stale {
			// Serve stale, refresh in the background. Singleflight collapses
			// concurrent triggers into one load.
			go func() {
				_, _, _ = c.sf.Do(key, func() (interface{}, error) {
					return c.refresh(context.WithoutCancel(ctx), key, load)
				})
			}()
			return entry.value, nil
		}
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.refresh(ctx, key, load)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *RefreshCache[V]) refresh(ctx context.Context, key string, load Loader[V]) (V, error) {
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: v, loadedAt: time.Now()}
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops the cached value for key so the next Get reloads
// synchronously.
func (c *RefreshCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Warm loads the key synchronously if it is missing or past the fresh
// window. Used by the scheduled refresh job so interactive requests rarely
// hit a synchronous reload.
func (c *RefreshCache[V]) Warm(ctx context.Context, key string, load Loader[V]) error {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.loadedAt) < c.fresh {
		return nil
	}
	_, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.refresh(ctx, key, load)
	})
	return err
}
