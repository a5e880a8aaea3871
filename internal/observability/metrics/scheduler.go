package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobOutcomeSuccess = "success"
	JobOutcomeError   = "error"
	JobOutcomeTimeout = "timeout"
)

// Scheduler counts background job runs for scraping.
type Scheduler struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewScheduler registers the scheduler collectors on reg. A nil registerer
// uses the default prometheus registry.
func NewScheduler(reg prometheus.Registerer) *Scheduler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energyscope",
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduler job runs by job and outcome.",
	}, []string{"job", "outcome"}))
	duration := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "energyscope",
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduler job duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"}))
	return &Scheduler{runs: runs, duration: duration}
}

// ProvideScheduler wires the collectors on the default registry.
func ProvideScheduler() *Scheduler {
	return NewScheduler(prometheus.DefaultRegisterer)
}

// ObserveJob records one finished job run.
func (s *Scheduler) ObserveJob(job, outcome string, elapsed time.Duration) {
	if s == nil {
		return
	}
	s.runs.WithLabelValues(job, outcome).Inc()
	s.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(C)
		}
		panic(err)
	}
	return c
}
