package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"powerdash/internal/layout"
	"powerdash/internal/localstore"
	"powerdash/internal/model"
	"powerdash/internal/registry"
)

type failingCatalog struct{}

func (failingCatalog) Devices(ctx context.Context, force bool) ([]model.Device, error) {
	return nil, errors.New("backend down")
}

func TestWidgetsVisibleMatchesDescriptorsWhenFetchFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A saved layout still naming a device widget, but the device fetch
	// fails and there is no cached device list to describe it.
	state := localstore.Open("", logger)
	if err := state.Set(localstore.KeyLayout, model.LayoutPreference{
		Order:  []string{"device-boiler", "live-usage", "battery"},
		Hidden: []string{},
	}); err != nil {
		t.Fatalf("seed layout: %v", err)
	}
	lay := layout.New(state, registry.IDs(registry.Builtin()), logger)

	h := &DashboardHandler{Layout: lay, Catalog: failingCatalog{}}
	r := gin.New()
	r.GET("/widgets", h.Widgets)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widgets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Widgets []registry.Descriptor `json:"widgets"`
		Visible []string              `json:"visible"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	described := make(map[string]bool, len(resp.Widgets))
	for _, d := range resp.Widgets {
		described[d.ID] = true
	}
	for _, id := range resp.Visible {
		if !described[id] {
			t.Fatalf("visible id %q has no descriptor: %v", id, resp.Widgets)
		}
	}
	if described["device-boiler"] {
		t.Fatal("undescribable device widget leaked into descriptors")
	}
	// The builtin widgets still render.
	if !described["live-usage"] || !described["battery"] {
		t.Fatalf("builtin widgets missing: %v", resp.Widgets)
	}
}
