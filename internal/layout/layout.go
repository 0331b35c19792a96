package layout

import (
	"log/slog"
	"sync"

	"powerdash/internal/localstore"
	"powerdash/internal/model"
	"powerdash/internal/registry"
)

// Engine holds the user's widget order and visibility and keeps the persisted
// copy in sync. Every mutation writes the full preference back synchronously;
// write volume is user-interaction-bound so there is no batching.
type Engine struct {
	mu     sync.Mutex
	state  *localstore.Store
	logger *slog.Logger
	pref   model.LayoutPreference
}

// New loads the persisted preference and merges it against the current
// catalog ids: surviving ids keep their saved relative order, unknown ids are
// pruned, and catalog ids the user has never seen are appended at the end.
// Device widget ids are kept as-is here; only ReconcileDevices prunes them,
// since the device catalog is not known yet at construction time.
//
// A legacy per-device visibility map is consumed into the hidden set once,
// then removed; it is never written again.
func New(state *localstore.Store, registryIDs []string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{state: state, logger: logger}
	e.mu.Lock()
	defer e.mu.Unlock()

	var persisted model.LayoutPreference
	ok, err := state.Get(localstore.KeyLayout, &persisted)
	if err != nil {
		logger.Warn("saved layout unreadable, using defaults", "error", err)
		ok = false
	}
	if !ok {
		e.pref = model.LayoutPreference{Order: append([]string(nil), registryIDs...), Hidden: []string{}}
	} else {
		e.pref = model.LayoutPreference{
			Order:  mergeOrder(persisted.Order, registryIDs),
			Hidden: append([]string{}, persisted.Hidden...),
		}
	}

	e.migrateLegacyVisibility()
	e.persistLocked()
	return e
}

// mergeOrder keeps persisted ids that still exist (same relative order),
// then appends current ids the persisted order has never seen, in catalog
// order. Device ids survive the merge untouched.
func mergeOrder(persisted, registryIDs []string) []string {
	known := make(map[string]bool, len(registryIDs))
	for _, id := range registryIDs {
		known[id] = true
	}

	order := make([]string, 0, len(persisted)+len(registryIDs))
	seen := make(map[string]bool, len(persisted))
	for _, id := range persisted {
		if seen[id] {
			continue
		}
		if known[id] || registry.IsDeviceWidget(id) {
			order = append(order, id)
			seen[id] = true
		}
	}
	for _, id := range registryIDs {
		if !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	return order
}

// migrateLegacyVisibility folds the old deviceVisibility map (device id ->
// shown flag) into the hidden set and deletes the key.
func (e *Engine) migrateLegacyVisibility() {
	var legacy map[string]bool
	ok, err := e.state.Get(localstore.KeyDeviceVisibility, &legacy)
	if err != nil || !ok {
		return
	}
	for deviceID, visible := range legacy {
		if visible {
			continue
		}
		id := registry.DeviceWidgetID(deviceID)
		if !contains(e.pref.Hidden, id) {
			e.pref.Hidden = append(e.pref.Hidden, id)
		}
	}
	e.state.Delete(localstore.KeyDeviceVisibility)
	e.logger.Info("migrated legacy device visibility", "entries", len(legacy))
}

// ReconcileDevices syncs the order with the latest device fetch: device
// widget ids for removed devices are dropped, new devices are appended.
// Calling it twice with the same set changes nothing.
func (e *Engine) ReconcileDevices(deviceIDs []string) {
	current := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		current[registry.DeviceWidgetID(id)] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	order := make([]string, 0, len(e.pref.Order))
	present := make(map[string]bool, len(e.pref.Order))
	for _, id := range e.pref.Order {
		if registry.IsDeviceWidget(id) && !current[id] {
			changed = true
			continue
		}
		order = append(order, id)
		present[id] = true
	}
	for _, deviceID := range deviceIDs {
		id := registry.DeviceWidgetID(deviceID)
		if !present[id] {
			order = append(order, id)
			present[id] = true
			changed = true
		}
	}

	if changed {
		e.pref.Order = order
		e.persistLocked()
	}
}

// Reorder moves the id at source to destination, as a drag-and-drop splice.
// Out-of-range indexes mean the drag did not resolve to a drop target; that
// is a no-op, not an error.
func (e *Engine) Reorder(source, destination int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.pref.Order)
	if source < 0 || source >= n || destination < 0 || destination >= n || source == destination {
		return
	}

	order := append([]string(nil), e.pref.Order...)
	id := order[source]
	order = append(order[:source], order[source+1:]...)
	order = append(order[:destination], append([]string{id}, order[destination:]...)...)
	e.pref.Order = order
	e.persistLocked()
}

// ToggleVisibility moves id into or out of the hidden set.
func (e *Engine) ToggleVisibility(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if contains(e.pref.Hidden, id) {
		hidden := e.pref.Hidden[:0]
		for _, h := range e.pref.Hidden {
			if h != id {
				hidden = append(hidden, h)
			}
		}
		e.pref.Hidden = hidden
	} else {
		e.pref.Hidden = append(e.pref.Hidden, id)
	}
	e.persistLocked()
}

// Visible returns the order minus hidden ids. A non-empty allowed list
// additionally restricts the result to those ids, for pages that only render
// a subset of widget categories.
func (e *Engine) Visible(allowed ...string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var allow map[string]bool
	if len(allowed) > 0 {
		allow = make(map[string]bool, len(allowed))
		for _, id := range allowed {
			allow[id] = true
		}
	}

	visible := make([]string, 0, len(e.pref.Order))
	for _, id := range e.pref.Order {
		if contains(e.pref.Hidden, id) {
			continue
		}
		if allow != nil && !allow[id] {
			continue
		}
		visible = append(visible, id)
	}
	return visible
}

// Preference returns a copy of the current order and hidden set.
func (e *Engine) Preference() model.LayoutPreference {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.LayoutPreference{
		Order:  append([]string(nil), e.pref.Order...),
		Hidden: append([]string(nil), e.pref.Hidden...),
	}
}

func (e *Engine) persistLocked() {
	if err := e.state.Set(localstore.KeyLayout, e.pref); err != nil {
		e.logger.Warn("layout persistence failed", "error", err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
