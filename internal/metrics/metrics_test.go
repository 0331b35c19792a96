package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_ExposesRecordedMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordAPIRequest("/api/devices/usage", 200, 30*time.Millisecond)
	c.RecordAPIRequest("/api/devices/usage", 0, time.Second)
	c.RecordCacheHit("k")
	c.RecordCacheMiss("k")
	c.RecordPushMessage()
	c.RecordReconnect()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()

	for _, want := range []string{
		`powerdash_api_requests_total{endpoint="/api/devices/usage",status_code="200"} 1`,
		`powerdash_api_requests_total{endpoint="/api/devices/usage",status_code="0"} 1`,
		"powerdash_fetch_cache_hits_total 1",
		"powerdash_fetch_cache_misses_total 1",
		"powerdash_push_messages_total 1",
		"powerdash_push_reconnects_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
