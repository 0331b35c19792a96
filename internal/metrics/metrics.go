// Package metrics collects and exposes Prometheus metrics for the agent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records backend API traffic, fetch cache effectiveness and push
// channel health.
type Collector struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  prometheus.Histogram
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	pushUpdates prometheus.Counter
	reconnects  prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerdash_api_requests_total",
			Help: "Backend API requests by endpoint and status code (0 = transport failure).",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "powerdash_api_latency_seconds",
			Help:    "Backend API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerdash_fetch_cache_hits_total",
			Help: "Reads served from the shared fetch cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerdash_fetch_cache_misses_total",
			Help: "Reads that went through to the backend.",
		}),
		pushUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerdash_push_messages_total",
			Help: "Notifications received over the push connection.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerdash_push_reconnects_total",
			Help: "Push connection reconnect attempts after unexpected closure.",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.cacheHits,
		c.cacheMisses,
		c.pushUpdates,
		c.reconnects,
	)
	return c
}

func (c *Collector) RecordAPIRequest(endpoint string, statusCode int, d time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.Observe(d.Seconds())
}

func (c *Collector) RecordCacheHit(key string)  { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss(key string) { c.cacheMisses.Inc() }

func (c *Collector) RecordPushMessage() { c.pushUpdates.Inc() }
func (c *Collector) RecordReconnect()   { c.reconnects.Inc() }

// Handler exposes the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
