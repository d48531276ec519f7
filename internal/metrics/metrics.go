// Package metrics exposes Prometheus counters for the tick loop and notification fan-out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the scheduler, notifiers and alert service report into.
type Recorder interface {
	RecordTick(duration time.Duration)
	RecordStepFailure(step string)
	RecordNotification(kind string)
	RecordSinkFailure(sink string)
	SetAlertRules(n int)
}

type Collector struct {
	ticks       prometheus.Counter
	tickLatency prometheus.Histogram
	stepFail    *prometheus.CounterVec
	notified    *prometheus.CounterVec
	sinkFail    *prometheus.CounterVec
	alertRules  prometheus.Gauge
}

// NewCollector creates the collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tclock_ticks_total",
			Help: "Scheduler ticks executed.",
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tclock_tick_duration_seconds",
			Help:    "Wall time of one scheduler tick.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		stepFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tclock_tick_step_failures_total",
			Help: "Tick steps that returned an error or panicked.",
		}, []string{"step"}),
		notified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tclock_notifications_total",
			Help: "Notifications dispatched, by kind.",
		}, []string{"kind"}),
		sinkFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tclock_notify_sink_failures_total",
			Help: "Notification sink errors, by sink.",
		}, []string{"sink"}),
		alertRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tclock_alert_rules",
			Help: "Alert rules currently stored.",
		}),
	}

	reg.MustRegister(c.ticks, c.tickLatency, c.stepFail, c.notified, c.sinkFail, c.alertRules)
	return c
}

func (c *Collector) RecordTick(d time.Duration) {
	c.ticks.Inc()
	c.tickLatency.Observe(d.Seconds())
}

func (c *Collector) RecordStepFailure(step string) {
	c.stepFail.WithLabelValues(step).Inc()
}

func (c *Collector) RecordNotification(kind string) {
	c.notified.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordSinkFailure(sink string) {
	c.sinkFail.WithLabelValues(sink).Inc()
}

func (c *Collector) SetAlertRules(n int) {
	c.alertRules.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTick(time.Duration)  {}
func (Nop) RecordStepFailure(string)  {}
func (Nop) RecordNotification(string) {}
func (Nop) RecordSinkFailure(string)  {}
func (Nop) SetAlertRules(int)         {}
