// Package metrics records deployment outcomes in a Prometheus registry.
//
// A deployment is a short lived batch job, so metrics are pushed to a
// Pushgateway when the run ends rather than scraped.
package metrics

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/pseudomuto/snowkeeper/pkg/executor"
)

const namespace = "snowkeeper"

// Collector holds the deployment metrics. It implements executor.Observer.
type Collector struct {
	registry *prometheus.Registry

	Scripts        *prometheus.CounterVec
	ScriptDuration *prometheus.HistogramVec
	WarehouseSize  *prometheus.CounterVec
	LastRun        *prometheus.GaugeVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Scripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scripts_total",
			Help:      "Change scripts processed, by type and outcome",
		}, []string{"type", "outcome"}),
		ScriptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "script_duration_seconds",
			Help:      "Execution time of applied change scripts",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"type"}),
		WarehouseSize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warehouse_resizes_total",
			Help:      "Warehouse size policy decisions",
		}, []string{"outcome"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last deployment, by result",
		}, []string{"environment", "result"}),
	}

	reg.MustRegister(c.Scripts, c.ScriptDuration, c.WarehouseSize, c.LastRun)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe records a script outcome.
func (c *Collector) Observe(r *executor.ExecutionResult) {
	kind := r.Script.Type.String()
	c.Scripts.WithLabelValues(kind, string(r.Status)).Inc()

	if r.Status == executor.StatusApplied {
		c.ScriptDuration.WithLabelValues(kind).Observe(r.ExecutionTime.Seconds())
	}
}

// Resize records a warehouse size decision.
func (c *Collector) Resize(outcome string) {
	c.WarehouseSize.WithLabelValues(outcome).Inc()
}

// Finish records the end of a run.
func (c *Collector) Finish(environment string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	c.LastRun.WithLabelValues(environment, result).SetToCurrentTime()
}

// Push sends every metric to the Pushgateway at url, grouped under job and
// the given labels.
func (c *Collector) Push(ctx context.Context, url, job string, labels map[string]string) error {
	p := push.New(strings.TrimRight(url, "/"), job).Gatherer(c.registry)
	for k, v := range labels {
		p = p.Grouping(k, v)
	}

	return errors.Wrapf(p.PushContext(ctx), "failed to push metrics to %s", url)
}
