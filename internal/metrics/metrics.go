// Package metrics exposes quiz counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skillquiz-service/internal/domain"
)

// Recorder implements app.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted     *prometheus.CounterVec
	sessionsCompleted   *prometheus.CounterVec
	moderation          *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	scorePercentage     prometheus.Histogram
}

// New registers the quiz collectors, plus Go runtime and process collectors, on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Quiz attempts started",
			},
			[]string{"source"}, // builtin or community
		),
		sessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_completed_total",
				Help: "Quiz attempts whose result was stored",
			},
			[]string{"source"},
		),
		moderation: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_moderation_transitions_total",
				Help: "Community quiz moderation transitions by resulting status",
			},
			[]string{"status"},
		),
		persistenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_persistence_failures_total",
				Help: "Storage failures surfaced to callers",
			},
			[]string{"op"},
		),
		scorePercentage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quiz_score_percentage",
				Help:    "Percentage score of completed attempts",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
	}
}

func (r *Recorder) SessionStarted(source string) {
	r.sessionsStarted.WithLabelValues(source).Inc()
}

func (r *Recorder) SessionCompleted(source string, percentage int) {
	r.sessionsCompleted.WithLabelValues(source).Inc()
	r.scorePercentage.Observe(float64(percentage))
}

func (r *Recorder) ModerationTransition(status domain.ModerationStatus) {
	r.moderation.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) PersistenceFailure(op string) {
	r.persistenceFailures.WithLabelValues(op).Inc()
}

// TrackCountdowns publishes active() as the number of running attempt countdowns.
func (r *Recorder) TrackCountdowns(active func() int) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "quiz_countdowns_active",
			Help: "Attempt countdowns currently scheduled",
		},
		func() float64 { return float64(active()) },
	))
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
