//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics collects task and day outcomes into a Prometheus registry
// that is pushed to a Pushgateway when the process finishes, and keeps
// per-task latency histograms for the end-of-run summary.
package metrics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

const (
	namespace = "starload"

	// Latencies are recorded in microseconds, up to one day.
	maxLatencyMicros = int64(24 * time.Hour / time.Microsecond)
	sigFigs          = 3
)

// Collector records workflow outcomes. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	taskRows     *prometheus.CounterVec
	dayRuns      *prometheus.CounterVec
	lastSuccess  prometheus.Gauge

	mu             sync.Mutex
	latencies      map[string]*hdrhistogram.Histogram
	lastSuccessDay time.Time
}

// NewCollector creates a collector with its own registry.
func NewCollector(dagID string) *Collector {
	labels := prometheus.Labels{"dag_id": dagID}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "task_runs_total",
			Help:        "Finished task executions by outcome.",
			ConstLabels: labels,
		}, []string{"task", "state"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "task_duration_seconds",
			Help:        "Task execution time across all attempts.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"task"}),
		taskRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "task_rows_total",
			Help:        "Rows inserted, updated or deleted by successful tasks.",
			ConstLabels: labels,
		}, []string{"task"}),
		dayRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "day_runs_total",
			Help:        "Finished day runs by outcome.",
			ConstLabels: labels,
		}, []string{"state"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_success_logical_date_seconds",
			Help:        "Logical date of the latest successful day, as a Unix timestamp.",
			ConstLabels: labels,
		}),
		latencies: make(map[string]*hdrhistogram.Histogram),
	}

	c.registry.MustRegister(c.taskRuns, c.taskDuration, c.taskRows, c.dayRuns, c.lastSuccess)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveTask records a finished task.
func (c *Collector) ObserveTask(taskID, state string, d time.Duration, rows int64) {
	c.taskRuns.WithLabelValues(taskID, state).Inc()
	c.taskDuration.WithLabelValues(taskID).Observe(d.Seconds())
	if rows > 0 {
		c.taskRows.WithLabelValues(taskID).Add(float64(rows))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.latencies[taskID]
	if !ok {
		h = hdrhistogram.New(1, maxLatencyMicros, sigFigs)
		c.latencies[taskID] = h
	}
	// Values outside the trackable range are dropped.
	_ = h.RecordValue(max(d.Microseconds(), 1))
}

// ObserveDay records a finished day run.
func (c *Collector) ObserveDay(day time.Time, state string, _ time.Duration) {
	c.dayRuns.WithLabelValues(state).Inc()
	if state == "success" {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Reruns of older days must not move the gauge backwards.
		if day.After(c.lastSuccessDay) {
			c.lastSuccessDay = day
			c.lastSuccess.Set(float64(day.Unix()))
		}
	}
}

// Latency summarizes one task's execution times.
type Latency struct {
	TaskID string
	Count  int64
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Max    time.Duration
}

// Latencies returns per-task summaries ordered by task id.
func (c *Collector) Latencies() []Latency {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Latency, 0, len(c.latencies))
	for id, h := range c.latencies {
		out = append(out, Latency{
			TaskID: id,
			Count:  h.TotalCount(),
			Mean:   time.Duration(h.Mean()) * time.Microsecond,
			P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
			P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
			P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
			Max:    time.Duration(h.Max()) * time.Microsecond,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// LogSummary logs one line per task with its latency distribution.
func (c *Collector) LogSummary() {
	for _, l := range c.Latencies() {
		logging.Info().
			Str("task", l.TaskID).
			Int64("runs", l.Count).
			Dur("mean", l.Mean).
			Dur("p50", l.P50).
			Dur("p95", l.P95).
			Dur("max", l.Max).
			Msg("Task latency")
	}
}

// Push sends the registry to a Pushgateway under the given job.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("pushgateway url is required")
	}
	if strings.TrimSpace(job) == "" {
		return errors.New("pushgateway job is required")
	}
	return push.New(url, job).Gatherer(c.registry).PushContext(ctx)
}
