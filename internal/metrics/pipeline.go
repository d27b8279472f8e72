package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mealvault/mealvault/internal/models"
)

// PipelineCollector records extraction, compliance and import job events.
// It satisfies extraction.Observer, compliance.GateObserver and
// jobs.Observer.
type PipelineCollector struct {
	extractions     *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	permits         *prometheus.CounterVec
	permitWait      *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	jobs            *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	items           *prometheus.CounterVec
}

// NewPipelineCollector registers the pipeline metrics on reg.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	c := &PipelineCollector{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Extractions by platform and outcome (success or error kind).",
		}, []string{"platform", "outcome"}),
		extractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Extraction latency including compliance waits.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"platform"}),
		permits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compliance",
			Name:      "permits_total",
			Help:      "Requests admitted by the compliance gate.",
		}, []string{"platform"}),
		permitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compliance",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a rate limit window before admission.",
			Buckets:   []float64{0, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"platform"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compliance",
			Name:      "rejections_total",
			Help:      "Requests refused by the compliance gate.",
		}, []string{"platform", "reason"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "jobs_total",
			Help:      "Finished import jobs by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished import jobs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "items_total",
			Help:      "Processed import items by result.",
		}, []string{"result"}),
	}

	for _, col := range []prometheus.Collector{
		c.extractions, c.extractDuration, c.permits, c.permitWait,
		c.rejections, c.jobs, c.jobDuration, c.items,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *PipelineCollector) ObserveExtraction(p models.Platform, outcome string, d time.Duration) {
	c.extractions.WithLabelValues(string(p), outcome).Inc()
	c.extractDuration.WithLabelValues(string(p)).Observe(d.Seconds())
}

func (c *PipelineCollector) ObservePermit(p models.Platform, waited time.Duration) {
	c.permits.WithLabelValues(string(p)).Inc()
	c.permitWait.WithLabelValues(string(p)).Observe(waited.Seconds())
}

func (c *PipelineCollector) ObserveRejection(p models.Platform, reason string) {
	c.rejections.WithLabelValues(string(p), reason).Inc()
}

func (c *PipelineCollector) ObserveJob(status models.ImportStatus, d time.Duration) {
	c.jobs.WithLabelValues(string(status)).Inc()
	c.jobDuration.Observe(d.Seconds())
}

func (c *PipelineCollector) ObserveItem(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.items.WithLabelValues(result).Inc()
}
