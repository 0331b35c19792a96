package devices

import (
	"context"
	"errors"
	"testing"
	"time"

	"powerdash/internal/localstore"
	"powerdash/internal/model"
)

type fakeAPI struct {
	devices []model.Device
	err     error
	calls   int
}

func (f *fakeAPI) DeviceUsage(ctx context.Context) ([]model.Device, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

func twoDevices() []model.Device {
	return []model.Device{
		{ID: "boiler", Label: "Boiler", Unit: "kW"},
		{ID: "ev", Label: "Laadpaal", Unit: "kW"},
	}
}

func TestDevices_FreshnessWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	api := &fakeAPI{devices: twoDevices()}
	c := NewWithNow(api, localstore.Open("", nil), 5*time.Minute, nil, func() time.Time { return clock })

	ctx := context.Background()
	if _, err := c.Devices(ctx, false); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", api.calls)
	}

	// 4 minutes in: still fresh, no network call.
	clock = now.Add(4 * time.Minute)
	devices, err := c.Devices(ctx, false)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("expected cached read, got %d calls", api.calls)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	// 6 minutes in: stale, refetch.
	clock = now.Add(6 * time.Minute)
	if _, err := c.Devices(ctx, false); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("expected refetch after window, got %d calls", api.calls)
	}
}

func TestDevices_ForceRefresh(t *testing.T) {
	api := &fakeAPI{devices: twoDevices()}
	c := New(api, localstore.Open("", nil), 5*time.Minute, nil)

	ctx := context.Background()
	if _, err := c.Devices(ctx, false); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if _, err := c.Devices(ctx, true); err != nil {
		t.Fatalf("Devices force: %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("expected force to bypass cache, got %d calls", api.calls)
	}
}

func TestDevices_StaleCacheSurvivesFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	api := &fakeAPI{devices: twoDevices()}
	state := localstore.Open("", nil)
	c := NewWithNow(api, state, 5*time.Minute, nil, func() time.Time { return clock })

	ctx := context.Background()
	if _, err := c.Devices(ctx, false); err != nil {
		t.Fatalf("Devices: %v", err)
	}

	api.err = errors.New("backend down")
	clock = now.Add(10 * time.Minute)
	devices, err := c.Devices(ctx, false)
	if err == nil {
		t.Fatalf("expected surfaced error")
	}
	if len(devices) != 2 {
		t.Fatalf("expected stale devices kept, got %d", len(devices))
	}

	// The cache itself must not have been cleared.
	api.err = nil
	clock = now.Add(10 * time.Minute)
	devices, err = c.Devices(ctx, false)
	if err != nil {
		t.Fatalf("Devices after recovery: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected devices after recovery, got %d", len(devices))
	}
}

func TestDevices_NoCacheFailureReturnsError(t *testing.T) {
	api := &fakeAPI{err: errors.New("backend down")}
	c := New(api, localstore.Open("", nil), 5*time.Minute, nil)

	devices, err := c.Devices(context.Background(), false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if devices != nil {
		t.Fatalf("expected no devices, got %v", devices)
	}
}

func TestIDs(t *testing.T) {
	ids := IDs(twoDevices())
	if len(ids) != 2 || ids[0] != "boiler" || ids[1] != "ev" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
