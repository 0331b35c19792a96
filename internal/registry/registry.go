package registry

import (
	"strings"

	"powerdash/internal/model"
)

// Descriptor identifies one widget: a display unit bound to a data source.
// Device descriptors are synthesized at runtime, one per fetched device.
type Descriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Device bool   `json:"device,omitempty"`
}

const deviceWidgetPrefix = "device-"

// Builtin is the fixed, ordered widget catalog. The order here is the
// default dashboard order for a user without a saved layout.
func Builtin() []Descriptor {
	return []Descriptor{
		{ID: "live-usage", Name: "Live Energieverbruik"},
		{ID: "history", Name: "Historiek"},
		{ID: "power-history-chart", Name: "Verbruiksgrafiek"},
		{ID: "battery", Name: "Batterij"},
		{ID: "temperature", Name: "Temperatuur"},
		{ID: "ai-alerts", Name: "AI Alerts"},
	}
}

// IDs projects descriptors to their identifiers, preserving order.
func IDs(descriptors []Descriptor) []string {
	ids := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		ids = append(ids, d.ID)
	}
	return ids
}

// DeviceWidgetID maps a device to its widget identifier.
func DeviceWidgetID(deviceID string) string {
	return deviceWidgetPrefix + deviceID
}

// IsDeviceWidget reports whether id names a device-derived widget.
func IsDeviceWidget(id string) bool {
	return strings.HasPrefix(id, deviceWidgetPrefix)
}

// WithDevices returns the catalog extended with one descriptor per device,
// appended after the builtin entries.
func WithDevices(base []Descriptor, devices []model.Device) []Descriptor {
	out := make([]Descriptor, len(base), len(base)+len(devices))
	copy(out, base)
	for _, d := range devices {
		name := d.Label
		if name == "" {
			name = d.ID
		}
		out = append(out, Descriptor{ID: DeviceWidgetID(d.ID), Name: name, Device: true})
	}
	return out
}
