// Package metrics exposes generation pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several instances can coexist in
// tests. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	conceptCandidates *prometheus.CounterVec
	scenesCompleted   prometheus.Counter
	videoOutcomes     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	pollAttempts      *prometheus.HistogramVec
	creditFailures    prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// NewRecorder registers every collector under namespace.
func NewRecorder(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		conceptCandidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concept_candidates_total",
			Help:      "Concept candidates by result (kept or dropped).",
		}, []string{"result"}),
		scenesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_scenes_completed_total",
			Help:      "Video scenes that finished generating.",
		}),
		videoOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_outcomes_total",
			Help:      "Video requests by outcome kind.",
		}, []string{"kind"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stages.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage", "status"}),
		pollAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_poll_attempts",
			Help:      "Polls needed before an async operation completed.",
			Buckets:   prometheus.LinearBuckets(1, 5, 12),
		}, []string{"kind"}),
		creditFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_deduction_failures_total",
			Help:      "Successful generations whose credit deduction failed.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ConceptCandidates(kept, dropped int) {
	if r == nil {
		return
	}
	r.conceptCandidates.WithLabelValues("kept").Add(float64(kept))
	r.conceptCandidates.WithLabelValues("dropped").Add(float64(dropped))
}

func (r *Recorder) SceneCompleted() {
	if r == nil {
		return
	}
	r.scenesCompleted.Inc()
}

func (r *Recorder) VideoOutcome(kind string) {
	if r == nil {
		return
	}
	r.videoOutcomes.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObserveStage(stage string, started time.Time, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.stageDuration.WithLabelValues(stage, status).Observe(time.Since(started).Seconds())
}

func (r *Recorder) PollAttempts(kind string, attempts int) {
	if r == nil {
		return
	}
	r.pollAttempts.WithLabelValues(kind).Observe(float64(attempts))
}

func (r *Recorder) CreditDeductionFailed() {
	if r == nil {
		return
	}
	r.creditFailures.Inc()
}

func (r *Recorder) HTTPRequest(route string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
