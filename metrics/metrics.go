// Package metrics exposes Prometheus collectors for the deployment pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launchpad"

// Session modes.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// Pipeline holds the pipeline collectors. A nil *Pipeline records nothing.
type Pipeline struct {
	sessions      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	cacheHits     prometheus.Counter
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Deployment sessions by mode and terminal state.",
		}, []string{"mode", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline state.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_cache_hits_total",
			Help:      "Compilations served from the artifact cache.",
		}),
	}

	for _, c := range []prometheus.Collector{p.sessions, p.stageDuration, p.cacheHits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// SessionEnded counts a session that reached a terminal state.
func (p *Pipeline) SessionEnded(mode, outcome string) {
	if p == nil {
		return
	}
	p.sessions.WithLabelValues(mode, outcome).Inc()
}

// StageCompleted records how long the pipeline spent in stage.
func (p *Pipeline) StageCompleted(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CompileCacheHit implements compiler.CacheObserver.
func (p *Pipeline) CompileCacheHit() {
	if p == nil {
		return
	}
	p.cacheHits.Inc()
}
