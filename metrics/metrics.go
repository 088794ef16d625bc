// Package metrics exports plog pipeline measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trickstertwo/plog"
)

// Collector implements plog.MetricsCollector on Prometheus vectors.
type Collector struct {
	written *prometheus.CounterVec
	failed  *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	dropped *prometheus.CounterVec
}

var _ plog.MetricsCollector = (*Collector)(nil)

// NewCollector registers the plog metrics on reg. A nil reg uses
// prometheus.DefaultRegisterer; namespace defaults to "plog".
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "plog"
	}
	f := promauto.With(reg)
	return &Collector{
		written: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records delivered to a sink, by channel and level",
		}, []string{"channel", "level"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Sink writes that returned an error, by channel",
		}, []string{"channel"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Rendered bytes handed to sinks, by channel",
		}, []string{"channel"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_write_seconds",
			Help:      "Sink write latency in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"channel"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records that never reached the channels, by reason",
		}, []string{"reason"}),
	}
}

func (c *Collector) Written(channel string, level plog.Level, size int, dur time.Duration, err error) {
	c.latency.WithLabelValues(channel).Observe(dur.Seconds())
	if err != nil {
		c.failed.WithLabelValues(channel).Inc()
		return
	}
	c.written.WithLabelValues(channel, level.String()).Inc()
	c.bytes.WithLabelValues(channel).Add(float64(size))
}

func (c *Collector) Dropped(reason plog.DropReason) {
	c.dropped.WithLabelValues(string(reason)).Inc()
}
