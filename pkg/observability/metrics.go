// Package observability bundles prometheus metrics behind the engine's
// lifecycle hooks.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fabulaverse/fabula/pkg/domain"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	nodeVisits   *prometheus.CounterVec
	resolves     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	degradations *prometheus.CounterVec
	preloads     *prometheus.CounterVec
	scorePoints  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabula_node_visits_total",
				Help: "Total number of story node visits",
			},
			[]string{"subject", "kind"},
		),
		resolves: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fabula_resolve_duration_seconds",
				Help: "Duration of primary image resolutions",
			},
			[]string{"subject"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabula_cache_lookups_total",
				Help: "Image cache lookups by result",
			},
			[]string{"result"},
		),
		degradations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabula_degradations_total",
				Help: "Content failures absorbed by a degradation path",
			},
			[]string{"subject"},
		),
		preloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabula_preloads_total",
				Help: "Background preloads by result",
			},
			[]string{"result"},
		),
		scorePoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fabula_score_points_total",
				Help: "Score points awarded to players",
			},
			[]string{"subject"},
		),
	}
	reg.MustRegister(m.nodeVisits, m.resolves, m.cacheLookups, m.degradations, m.preloads, m.scorePoints)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.Subject, string(e.Kind)).Inc()
		},
		OnResolve: func(ctx context.Context, e *domain.ResolveEvent) {
			m.resolves.WithLabelValues(e.Subject).Observe(e.Duration.Seconds())
			result := "miss"
			if e.CacheHit {
				result = "hit"
			}
			m.cacheLookups.WithLabelValues(result).Inc()
		},
		OnDegrade: func(ctx context.Context, e *domain.DegradeEvent) {
			m.degradations.WithLabelValues(e.Subject).Inc()
		},
		OnScore: func(ctx context.Context, e *domain.ScoreEvent) {
			m.scorePoints.WithLabelValues(e.Subject).Add(float64(e.Delta))
		},
		OnPreload: func(ctx context.Context, e *domain.PreloadEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.preloads.WithLabelValues(result).Inc()
		},
	}
}
