package server

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalMetricsCounters(t *testing.T) {
	metrics, scope := newTestMetrics()

	metrics.AppearanceResolved(true)
	metrics.AppearanceResolved(false)
	metrics.AppearanceResolved(false)
	metrics.AppearanceBindFallback(WearableHair)
	metrics.WearingIgnored()
	metrics.WearingAborted()
	metrics.WearingApplied(5 * time.Millisecond)
	metrics.WearingSlotsDropped(3)

	assert.Equal(t, int64(1), counterValue(scope, "appearance_resolve_count", "found", "true"))
	assert.Equal(t, int64(2), counterValue(scope, "appearance_resolve_count", "found", "false"))
	assert.Equal(t, int64(1), counterValue(scope, "appearance_bind_fallback_count", "slot", "hair"))
	assert.Equal(t, int64(3), counterValue(scope, "appearance_wearing_count"))
	assert.Equal(t, int64(1), counterValue(scope, "appearance_wearing_count", "result", "applied"))
	assert.Equal(t, int64(3), counterValue(scope, "appearance_wearing_dropped_slots"))

	timers := scope.Snapshot().Timers()
	var recorded int
	for _, timer := range timers {
		if timer.Name() == "appearance_wearing_latency" {
			recorded += len(timer.Values())
		}
	}
	assert.Equal(t, 1, recorded)
}

func TestLocalMetricsHandler(t *testing.T) {
	config := NewMetricsConfig()
	config.ReportingFreqSec = 1
	metrics := NewLocalMetrics(zap.NewNop(), config, "node1")

	metrics.AppearanceStoreError()
	// Stopping flushes to the reporter.
	metrics.Stop(zap.NewNop())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "nevr_appearance_store_error_count")
}

func TestNoopMetricsHandler(t *testing.T) {
	m := NewScopeMetrics(zap.NewNop(), nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 404, rec.Code)
}
