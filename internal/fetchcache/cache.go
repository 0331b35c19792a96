package fetchcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Recorder receives cache hit/miss counts. See internal/metrics.
type Recorder interface {
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheHit(string)  {}
func (noopRecorder) RecordCacheMiss(string) {}

// Cache is a read-through cache keyed by endpoint+params, so widgets that
// share an underlying series share one fetch. Failures are never cached:
// one widget's failed fetch must not poison a sibling's next attempt.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	inflight map[string]*inflightCall
	now      func() time.Time
	metrics  Recorder
}

type entry struct {
	value any
	at    time.Time
}

type inflightCall struct {
	done  chan struct{}
	value any
	err   error
}

func New(metrics Recorder) *Cache {
	return NewWithNow(metrics, time.Now)
}

func NewWithNow(metrics Recorder, now func() time.Time) *Cache {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Cache{
		entries:  make(map[string]entry),
		inflight: make(map[string]*inflightCall),
		now:      now,
		metrics:  metrics,
	}
}

// Key builds a cache key from an endpoint and its parameters.
func Key(endpoint string, params ...string) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + strings.Join(params, "&")
}

// Get returns the cached value for key when younger than ttl, otherwise runs
// fetch. Concurrent callers for the same key share a single in-flight fetch.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.at) < ttl {
		c.mu.Unlock()
		c.metrics.RecordCacheHit(key)
		return e.value, nil
	}
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		c.metrics.RecordCacheHit(key)
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	c.metrics.RecordCacheMiss(key)
	value, err := fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = entry{value: value, at: c.now()}
	}
	c.mu.Unlock()

	call.value, call.err = value, err
	close(call.done)
	return value, err
}

// Invalidate drops the cached entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
