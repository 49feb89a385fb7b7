package observability

import (
	"net/http"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rux"

// Outcome label values of rux_dispatch_total.
const (
	OutcomeCommitted = "committed"
	OutcomeUnchanged = "unchanged"
	OutcomeRollback  = "rollback"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	Dispatches    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Rollbacks     *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	StoreSlices   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatches by slice, action and outcome.",
		}, []string{"slice", "action", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of field notifications.",
		}, []string{"slice", "field"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Total number of rolled back dispatches.",
		}, []string{"slice"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of dispatches, notifications included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"slice"}),
		StoreSlices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_slices",
			Help:      "Number of root slices in the live store.",
		}),
	}
	m.registry.MustRegister(m.Dispatches, m.Notifications, m.Rollbacks, m.Duration, m.StoreSlices)
	return m
}

// Registry returns the registry holding the rux collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStoreCreated: func(e *domain.StoreEvent) {
			m.StoreSlices.Set(float64(len(e.Slices)))
		},
		OnStoreCleared: func(*domain.StoreEvent) {
			m.StoreSlices.Set(0)
		},
		OnDispatch: func(e *domain.DispatchEvent) {
			outcome := OutcomeCommitted
			if len(e.Changed) == 0 {
				outcome = OutcomeUnchanged
			}
			m.Dispatches.WithLabelValues(e.Slice, e.Action, outcome).Inc()
			m.Duration.WithLabelValues(e.Slice).Observe(e.Duration.Seconds())
		},
		OnRollback: func(e *domain.DispatchEvent) {
			m.Dispatches.WithLabelValues(e.Slice, e.Action, OutcomeRollback).Inc()
			m.Rollbacks.WithLabelValues(e.Slice).Inc()
			m.Duration.WithLabelValues(e.Slice).Observe(e.Duration.Seconds())
		},
		OnNotify: func(e *domain.NotifyEvent) {
			m.Notifications.WithLabelValues(e.Slice, e.Field).Inc()
		},
	}
}
