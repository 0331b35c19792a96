package registry

import (
	"testing"

	"powerdash/internal/model"
)

func TestWithDevicesAppendsAfterBuiltin(t *testing.T) {
	devs := []model.Device{
		{ID: "boiler", Label: "Boiler"},
		{ID: "fridge"},
	}
	all := WithDevices(Builtin(), devs)

	n := len(Builtin())
	if len(all) != n+2 {
		t.Fatalf("expected %d descriptors, got %d", n+2, len(all))
	}
	if all[n].ID != "device-boiler" || all[n].Name != "Boiler" {
		t.Fatalf("unexpected device descriptor: %+v", all[n])
	}
	// A device without a label falls back to its id.
	if all[n+1].Name != "fridge" {
		t.Fatalf("expected id fallback name, got %q", all[n+1].Name)
	}
	if !all[n].Device || all[0].Device {
		t.Fatalf("device flag wrong: %+v %+v", all[0], all[n])
	}
}

func TestIsDeviceWidget(t *testing.T) {
	if !IsDeviceWidget(DeviceWidgetID("boiler")) {
		t.Fatal("expected device widget id")
	}
	if IsDeviceWidget("live-usage") {
		t.Fatal("builtin id misread as device widget")
	}
}
