package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"powerdash/internal/devices"
	"powerdash/internal/layout"
	"powerdash/internal/model"
	"powerdash/internal/registry"
)

// DeviceCatalog is the slice of the device catalog the dashboard needs.
type DeviceCatalog interface {
	Devices(ctx context.Context, force bool) ([]model.Device, error)
}

// DashboardHandler serves the widget layout: the merged order, visibility,
// and the descriptors behind each id.
type DashboardHandler struct {
	Layout  *layout.Engine
	Catalog DeviceCatalog
}

type reorderBody struct {
	Source      *int `json:"source" binding:"required"`
	Destination *int `json:"destination" binding:"required"`
}

// Widgets returns the full dashboard state. The device list is refreshed
// through the cache first so device widgets reflect the current fleet; a
// fetch failure with no cache still renders the builtin widgets.
func (h *DashboardHandler) Widgets(c *gin.Context) {
	devs, err := h.Catalog.Devices(c.Request.Context(), false)
	if err == nil || len(devs) > 0 {
		h.Layout.ReconcileDevices(devices.IDs(devs))
	}

	descriptors := registry.WithDevices(registry.Builtin(), devs)
	byID := make(map[string]registry.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}

	pref := h.Layout.Preference()
	ordered := make([]registry.Descriptor, 0, len(pref.Order))
	for _, id := range pref.Order {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}

	// A device id can linger in the order when the fetch failed with no
	// cache; visible must only name widgets that have a descriptor.
	visible := make([]string, 0, len(pref.Order))
	for _, id := range h.Layout.Visible() {
		if _, ok := byID[id]; ok {
			visible = append(visible, id)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"widgets": ordered,
		"hidden":  pref.Hidden,
		"visible": visible,
	})
}

func (h *DashboardHandler) Reorder(c *gin.Context) {
	var body reorderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	h.Layout.Reorder(*body.Source, *body.Destination)
	c.JSON(http.StatusOK, gin.H{"order": h.Layout.Preference().Order})
}

func (h *DashboardHandler) Toggle(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid widget id"})
		return
	}

	h.Layout.ToggleVisibility(id)
	pref := h.Layout.Preference()
	c.JSON(http.StatusOK, gin.H{"hidden": pref.Hidden, "visible": h.Layout.Visible()})
}
