package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"powerdash/internal/fetchcache"
	"powerdash/internal/localstore"
	"powerdash/internal/model"
)

// PredictionHandler serves the AI consumption forecast. The value is derived
// from the most recent daily aggregate: the model's prediction when present,
// otherwise that day's average consumption. The last served value is cached
// in the state store so a backend outage still yields a number.
type PredictionHandler struct {
	API   MeasurementsAPI
	Cache *fetchcache.Cache
	State *localstore.Store
}

func (h *PredictionHandler) Get(c *gin.Context) {
	key := fetchcache.Key("measurements/daily", strconv.Itoa(defaultDailyDays))
	value, err := h.Cache.Get(c.Request.Context(), key, dailyCacheTTL, func(ctx context.Context) (any, error) {
		return h.API.DailyAggregations(ctx, defaultDailyDays)
	})
	if err != nil {
		var cached float64
		ok, getErr := h.State.Get(localstore.KeyPrediction, &cached)
		if getErr != nil || !ok {
			writeBackendError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"prediction": cached, "unit": "kWh", "stale": true})
		return
	}

	days, _ := value.([]model.DailyAggregate)
	if len(days) == 0 {
		c.JSON(http.StatusOK, gin.H{"prediction": nil, "unit": "kWh", "stale": false})
		return
	}

	prediction := days[0].AvgPowerConsumption
	if days[0].Prediction != nil {
		prediction = *days[0].Prediction
	}
	// Best effort; the live value is still served when the write fails.
	_ = h.State.Set(localstore.KeyPrediction, prediction)
	c.JSON(http.StatusOK, gin.H{"prediction": prediction, "unit": "kWh", "stale": false})
}
