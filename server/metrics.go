package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uber-go/tally/v4"
	tallyprom "github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/zap"
)

type Metrics interface {
	AppearanceResolved(found bool)
	AppearanceBindFallback(t WearableType)
	AppearanceBindNoInventory()
	AppearanceStoreError()

	WearingIgnored()
	WearingAborted()
	WearingApplied(elapsed time.Duration)
	WearingSlotsDropped(delta int64)

	Stop(logger *zap.Logger)
}

var _ Metrics = (*LocalMetrics)(nil)

type LocalMetrics struct {
	logger *zap.Logger
	scope  tally.Scope
	closer io.Closer

	registry *prometheus.Registry
}

// NewLocalMetrics reports to a private prometheus registry. Handler serves it.
func NewLocalMetrics(logger *zap.Logger, config *MetricsConfig, node string) *LocalMetrics {
	registry := prometheus.NewRegistry()
	reporter := tallyprom.NewReporter(tallyprom.Options{
		Registerer: registry,
		OnRegisterError: func(err error) {
			logger.Warn("Error registering metric", zap.Error(err))
		},
	})
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:          config.Prefix,
		Tags:            map[string]string{"node": node},
		CachedReporter:  reporter,
		Separator:       tallyprom.DefaultSeparator,
		SanitizeOptions: &tallyprom.DefaultSanitizerOpts,
	}, time.Duration(config.ReportingFreqSec)*time.Second)

	return &LocalMetrics{
		logger:   logger,
		scope:    scope,
		closer:   closer,
		registry: registry,
	}
}

// NewScopeMetrics reports to an existing scope, e.g. tally.NewTestScope.
func NewScopeMetrics(logger *zap.Logger, scope tally.Scope) *LocalMetrics {
	return &LocalMetrics{
		logger: logger,
		scope:  scope,
	}
}

func (m *LocalMetrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *LocalMetrics) Stop(logger *zap.Logger) {
	if m.closer == nil {
		return
	}
	if err := m.closer.Close(); err != nil {
		logger.Error("Error stopping metrics", zap.Error(err))
	}
}

func (m *LocalMetrics) AppearanceResolved(found bool) {
	m.scope.Tagged(map[string]string{"found": strconv.FormatBool(found)}).Counter("appearance_resolve_count").Inc(1)
}

func (m *LocalMetrics) AppearanceBindFallback(t WearableType) {
	m.scope.Tagged(map[string]string{"slot": t.String()}).Counter("appearance_bind_fallback_count").Inc(1)
}

func (m *LocalMetrics) AppearanceBindNoInventory() {
	m.scope.Counter("appearance_bind_no_inventory_count").Inc(1)
}

func (m *LocalMetrics) AppearanceStoreError() {
	m.scope.Counter("appearance_store_error_count").Inc(1)
}

func (m *LocalMetrics) WearingIgnored() {
	m.scope.Tagged(map[string]string{"result": "ignored"}).Counter("appearance_wearing_count").Inc(1)
}

func (m *LocalMetrics) WearingAborted() {
	m.scope.Tagged(map[string]string{"result": "aborted"}).Counter("appearance_wearing_count").Inc(1)
}

func (m *LocalMetrics) WearingApplied(elapsed time.Duration) {
	m.scope.Tagged(map[string]string{"result": "applied"}).Counter("appearance_wearing_count").Inc(1)
	m.scope.Timer("appearance_wearing_latency").Record(elapsed)
}

func (m *LocalMetrics) WearingSlotsDropped(delta int64) {
	m.scope.Counter("appearance_wearing_dropped_slots").Inc(delta)
}

// NewNoopMetrics discards everything.
func NewNoopMetrics() Metrics {
	return NewScopeMetrics(zap.NewNop(), tally.NoopScope)
}
