package pipeline

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Phase string

const (
	PhaseImport Phase = "import"
	PhaseBuild  Phase = "build"
	PhaseDeploy Phase = "deploy"
)

var histogramBuckets = []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800}

// MetricsCollector exports pipeline and scheduler activity to Prometheus.
type MetricsCollector struct {
	jobsProcessed  *prometheus.CounterVec
	targetResults  *prometheus.CounterVec
	targetDuration *prometheus.HistogramVec
	tickFailures   *prometheus.CounterVec
	runners        prometheus.Gauge
}

func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	mc := &MetricsCollector{
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corona",
			Subsystem: "pipeline",
			Name:      "jobs_processed_total",
			Help:      "Number of jobs processed, by the last phase reached and its outcome",
		}, []string{"phase", "outcome"}),

		targetResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corona",
			Subsystem: "pipeline",
			Name:      "target_results_total",
			Help:      "Number of per-target strategy outcomes",
		}, []string{"phase", "kind", "outcome"}),

		targetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corona",
			Subsystem: "pipeline",
			Name:      "target_duration_seconds",
			Help:      "Time spent in a strategy for one target",
			Buckets:   histogramBuckets,
		}, []string{"phase", "kind"}),

		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corona",
			Subsystem: "scheduler",
			Name:      "tick_failures_total",
			Help:      "Number of scheduler ticks that ended in an error or panic",
		}, []string{"runner"}),

		runners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corona",
			Subsystem: "scheduler",
			Name:      "runners_allocated",
			Help:      "Number of per-project runners allocated by the supervisor",
		}),
	}

	var err error
	if mc.jobsProcessed, err = register(reg, mc.jobsProcessed); err != nil {
		return nil, err
	}
	if mc.targetResults, err = register(reg, mc.targetResults); err != nil {
		return nil, err
	}
	if mc.targetDuration, err = register(reg, mc.targetDuration); err != nil {
		return nil, err
	}
	if mc.tickFailures, err = register(reg, mc.tickFailures); err != nil {
		return nil, err
	}
	if mc.runners, err = register(reg, mc.runners); err != nil {
		return nil, err
	}
	return mc, nil
}

// register adopts an identical collector that is already registered, so that
// several collectors can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (mc *MetricsCollector) ObserveJob(reached Phase, succeeded bool) {
	mc.jobsProcessed.With(prometheus.Labels{"phase": string(reached), "outcome": outcomeLabel(succeeded)}).Inc()
}

func (mc *MetricsCollector) ObserveTarget(phase Phase, kind string, ok bool, took time.Duration) {
	mc.targetResults.With(prometheus.Labels{"phase": string(phase), "kind": kind, "outcome": outcomeLabel(ok)}).Inc()
	if took > 0 {
		mc.targetDuration.With(prometheus.Labels{"phase": string(phase), "kind": kind}).Observe(took.Seconds())
	}
}

func (mc *MetricsCollector) TickFailed(runner string) {
	mc.tickFailures.With(prometheus.Labels{"runner": runner}).Inc()
}

func (mc *MetricsCollector) SetRunners(n int) {
	mc.runners.Set(float64(n))
}
