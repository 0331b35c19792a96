package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DevicesHandler exposes the cached per-device usage list.
type DevicesHandler struct {
	Catalog DeviceCatalog
}

// List serves the device catalog. ?refresh=true bypasses the cache window.
// When a refresh fails but a previously cached list exists, the stale list is
// served with stale set, so the UI keeps rendering device data.
func (h *DevicesHandler) List(c *gin.Context) {
	force := c.Query("refresh") == "true"
	devs, err := h.Catalog.Devices(c.Request.Context(), force)
	if err != nil {
		if len(devs) == 0 {
			writeBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"devices": devs, "stale": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devs, "stale": false})
}
