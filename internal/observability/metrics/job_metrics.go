package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config carries the constant labels applied to every job metric.
type Config struct {
	ServiceName string
	Environment string
}

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonDBLockTimeout    = "db_lock_timeout"
	JobReasonUniqueViolation  = "unique_violation"
	JobReasonNotFound         = "not_found"
	JobReasonUnknown          = "unknown"
)

// JobMetrics captures batch-job health signals: the top-up generation,
// missed sweep, reminder dispatch and risk scoring jobs all report here.
type JobMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	dosesGenerated *prometheus.CounterVec
	dosesMissed    prometheus.Counter
	remindersSent  prometheus.Counter
	runLoopLag     prometheus.Histogram
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the singleton job metrics registry.
func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

// JobsWithConfig returns the singleton job metrics registry using config labels.
func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

// ResetJobMetricsForTest resets the job metrics singleton for tests.
func ResetJobMetricsForTest() {
	jobMetricsOnce = sync.Once{}
	jobMetrics = nil
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "doseline"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	factory := promauto(registerer)

	m := &JobMetrics{
		jobRuns: factory.counterVec(prometheus.CounterOpts{
			Name:        "doseline_job_runs_total",
			Help:        "Number of batch job invocations.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: factory.histogramVec(prometheus.HistogramOpts{
			Name:        "doseline_job_duration_seconds",
			Help:        "Batch job wall-clock duration.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"job"}),
		jobTimeouts: factory.counterVec(prometheus.CounterOpts{
			Name:        "doseline_job_timeouts_total",
			Help:        "Number of batch jobs that hit their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: factory.counterVec(prometheus.CounterOpts{
			Name:        "doseline_job_errors_total",
			Help:        "Number of batch job errors by classified reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		batchProcessed: factory.counterVec(prometheus.CounterOpts{
			Name:        "doseline_job_units_processed_total",
			Help:        "Units of work completed per batch job.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		dosesGenerated: factory.counterVec(prometheus.CounterOpts{
			Name:        "doseline_doses_generated_total",
			Help:        "Dose instances created by the generation service.",
			ConstLabels: constLabels,
		}, []string{"trigger"}),
		dosesMissed: factory.counter(prometheus.CounterOpts{
			Name:        "doseline_doses_missed_total",
			Help:        "Pending dose instances transitioned to missed by the sweep.",
			ConstLabels: constLabels,
		}),
		remindersSent: factory.counter(prometheus.CounterOpts{
			Name:        "doseline_reminders_sent_total",
			Help:        "Dose reminders handed to the notification sender.",
			ConstLabels: constLabels,
		}),
		runLoopLag: factory.histogram(prometheus.HistogramOpts{
			Name:        "doseline_job_run_loop_lag_seconds",
			Help:        "Delay between the scheduled and actual start of a run loop iteration.",
			ConstLabels: constLabels,
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
	return m
}

func (m *JobMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *JobMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *JobMetrics) AddBatchProcessed(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job).Add(float64(n))
}

func (m *JobMetrics) AddDosesGenerated(trigger string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dosesGenerated.WithLabelValues(trigger).Add(float64(n))
}

func (m *JobMetrics) AddDosesMissed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dosesMissed.Add(float64(n))
}

func (m *JobMetrics) IncReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

func (m *JobMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifyJobReason buckets an error into a low-cardinality label.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return JobReasonNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01":
			return JobReasonDBLockTimeout
		case "23505":
			return JobReasonUniqueViolation
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

// promauto-style helpers that tolerate duplicate registration so the
// singleton can be rebuilt against a fresh registry in tests.
type factory struct {
	registerer prometheus.Registerer
}

func promauto(registerer prometheus.Registerer) factory {
	return factory{registerer: registerer}
}

func (f factory) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.register(c)
	return c
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.register(c)
	return c
}

func (f factory) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.register(h)
	return h
}

func (f factory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.register(h)
	return h
}

func (f factory) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.register(g)
	return g
}

func (f factory) register(c prometheus.Collector) {
	if err := f.registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return
		}
	}
}
