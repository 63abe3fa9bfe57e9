package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowline-dev/flowline/pkg/ports"
)

// PrometheusCollector implements ports.MetricsCollector on a private
// prometheus registry. Vectors are registered lazily on first use, keyed by
// metric name plus its sorted label set; subsequent observations with a
// different label set for the same name are dropped rather than panicking.
type PrometheusCollector struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labelSets  map[string]string
}

// NewPrometheusCollector creates a collector backed by a fresh registry.
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labelSets:  make(map[string]string),
	}
}

// Registry exposes the underlying registry so callers can mount it behind
// promhttp or merge it into their own gatherer.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// IncCounter increments the counter identified by name and labels.
func (c *PrometheusCollector) IncCounter(_ context.Context, name string, labels map[string]string) {
	keys, values := splitLabels(labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.labelSetMatches(name, keys) {
		return
	}
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.counters[name] = vec
	}
	vec.WithLabelValues(values...).Inc()
}

// SetGauge sets the gauge identified by name and labels.
func (c *PrometheusCollector) SetGauge(_ context.Context, name string, value float64, labels map[string]string) {
	keys, values := splitLabels(labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.labelSetMatches(name, keys) {
		return
	}
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, keys)
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.gauges[name] = vec
	}
	vec.WithLabelValues(values...).Set(value)
}

// ObserveHistogram records an observation on the histogram identified by
// name and labels.
func (c *PrometheusCollector) ObserveHistogram(_ context.Context, name string, value float64, labels map[string]string) {
	keys, values := splitLabels(labels)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.labelSetMatches(name, keys) {
		return
	}
	vec, ok := c.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		if err := c.registry.Register(vec); err != nil {
			return
		}
		c.histograms[name] = vec
	}
	vec.WithLabelValues(values...).Observe(value)
}

// labelSetMatches pins the first label set seen for a metric name. Callers
// must hold the mutex.
func (c *PrometheusCollector) labelSetMatches(name string, keys []string) bool {
	signature := strings.Join(keys, ",")
	seen, ok := c.labelSets[name]
	if !ok {
		c.labelSets[name] = signature
		return true
	}
	return seen == signature
}

func splitLabels(labels map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = labels[key]
	}
	return keys, values
}

var _ ports.MetricsCollector = (*PrometheusCollector)(nil)
