package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"powerdash/internal/localstore"
	"powerdash/internal/model"
)

// API is the slice of the backend client the catalog needs.
type API interface {
	DeviceUsage(ctx context.Context) ([]model.Device, error)
}

// Catalog serves the user's device list through a time-boxed cache. The
// payload and its timestamp live under separate store keys so "no data yet"
// and "data present but stale" stay distinguishable.
type Catalog struct {
	mu     sync.Mutex
	api    API
	state  *localstore.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func New(api API, state *localstore.Store, ttl time.Duration, logger *slog.Logger) *Catalog {
	return NewWithNow(api, state, ttl, logger, time.Now)
}

func NewWithNow(api API, state *localstore.Store, ttl time.Duration, logger *slog.Logger, now func() time.Time) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{api: api, state: state, ttl: ttl, now: now, logger: logger}
}

// Devices returns the device list. A cached payload younger than the
// freshness window answers without a network call unless force is set. When
// the fetch fails, an existing cached payload stays authoritative and is
// returned alongside the error; callers must not treat a failed refresh as
// empty data.
func (c *Catalog) Devices(ctx context.Context, force bool) ([]model.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, cachedAt, haveCache := c.readCache()
	if !force && haveCache && c.now().Sub(cachedAt) < c.ttl {
		return cached, nil
	}

	fetched, err := c.api.DeviceUsage(ctx)
	if err != nil {
		if haveCache {
			c.logger.Warn("device refresh failed, serving stale cache", "age", c.now().Sub(cachedAt), "error", err)
			return cached, err
		}
		return nil, err
	}

	if err := c.state.Set(localstore.KeyDeviceCache, fetched); err != nil {
		c.logger.Warn("device cache persistence failed", "error", err)
	}
	if err := c.state.Set(localstore.KeyDeviceCacheAt, c.now()); err != nil {
		c.logger.Warn("device cache timestamp persistence failed", "error", err)
	}
	return fetched, nil
}

// IDs returns just the identifiers of the given devices.
func IDs(devices []model.Device) []string {
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}

func (c *Catalog) readCache() ([]model.Device, time.Time, bool) {
	var cached []model.Device
	okData, err := c.state.Get(localstore.KeyDeviceCache, &cached)
	if err != nil || !okData {
		return nil, time.Time{}, false
	}
	var at time.Time
	okAt, err := c.state.Get(localstore.KeyDeviceCacheAt, &at)
	if err != nil || !okAt {
		return nil, time.Time{}, false
	}
	return cached, at, true
}
