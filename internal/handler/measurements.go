package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"powerdash/internal/fetchcache"
	"powerdash/internal/model"
)

const (
	latestCacheTTL = 30 * time.Second
	dailyCacheTTL  = 5 * time.Minute

	defaultLatestLimit = 60
	defaultDailyDays   = 30
	maxLatestLimit     = 1000
	maxDailyDays       = 365
)

// MeasurementsAPI is the backend slice behind the measurement routes.
type MeasurementsAPI interface {
	LatestMeasurements(ctx context.Context, limit int) ([]model.Measurement, error)
	DailyAggregations(ctx context.Context, days int) ([]model.DailyAggregate, error)
}

// MeasurementsHandler serves sensor readings through the shared fetch cache,
// so widgets polling the same window share one backend request.
type MeasurementsHandler struct {
	API   MeasurementsAPI
	Cache *fetchcache.Cache
}

func (h *MeasurementsHandler) Latest(c *gin.Context) {
	limit := intQuery(c, "limit", defaultLatestLimit, maxLatestLimit)
	key := fetchcache.Key("measurements/latest", strconv.Itoa(limit))
	value, err := h.Cache.Get(c.Request.Context(), key, latestCacheTTL, func(ctx context.Context) (any, error) {
		return h.API.LatestMeasurements(ctx, limit)
	})
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"measurements": value})
}

func (h *MeasurementsHandler) Daily(c *gin.Context) {
	days := intQuery(c, "days", defaultDailyDays, maxDailyDays)
	key := fetchcache.Key("measurements/daily", strconv.Itoa(days))
	value, err := h.Cache.Get(c.Request.Context(), key, dailyCacheTTL, func(ctx context.Context) (any, error) {
		return h.API.DailyAggregations(ctx, days)
	})
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": value})
}

func intQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
