// Metrics collection for the pinwatch daemon
//
// Provides Prometheus-compatible counters and gauges with text format
// exposition for scraping.
//
// Copyright (C) 2026  Pinwatch Authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Labels represents metric labels as key-value pairs
type Labels map[string]string

func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabel(labels[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing metric
type Counter struct {
	name   string
	help   string
	values sync.Map // labelKey -> *counterValue
}

type counterValue struct {
	labels Labels
	value  uint64
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Help() string { return c.help }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) {
	key := labelKey(labels)
	val, _ := c.values.LoadOrStore(key, &counterValue{labels: labels})
	atomic.AddUint64(&val.(*counterValue).value, delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	val, ok := c.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&val.(*counterValue).value)
}

func (c *Counter) Write(sb *strings.Builder) {
	sb.WriteString("# HELP ")
	sb.WriteString(c.name)
	sb.WriteByte(' ')
	sb.WriteString(c.help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(c.name)
	sb.WriteString(" counter\n")

	c.values.Range(func(_, value interface{}) bool {
		cv := value.(*counterValue)
		sb.WriteString(c.name)
		sb.WriteString(formatLabels(cv.labels))
		sb.WriteByte(' ')
		sb.WriteString(fmt.Sprintf("%d", atomic.LoadUint64(&cv.value)))
		sb.WriteByte('\n')
		return true
	})
}

// Gauge is a metric whose value can go up and down
type Gauge struct {
	name   string
	help   string
	values sync.Map // labelKey -> *gaugeValue
}

type gaugeValue struct {
	labels Labels
	bits   uint64 // float64 bits
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string { return g.name }
func (g *Gauge) Help() string { return g.help }

// Set sets the gauge value for labels
func (g *Gauge) Set(labels Labels, value float64) {
	key := labelKey(labels)
	val, _ := g.values.LoadOrStore(key, &gaugeValue{labels: labels})
	atomic.StoreUint64(&val.(*gaugeValue).bits, math.Float64bits(value))
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	val, ok := g.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return math.Float64frombits(atomic.LoadUint64(&val.(*gaugeValue).bits))
}

func (g *Gauge) Write(sb *strings.Builder) {
	sb.WriteString("# HELP ")
	sb.WriteString(g.name)
	sb.WriteByte(' ')
	sb.WriteString(g.help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(g.name)
	sb.WriteString(" gauge\n")

	g.values.Range(func(_, value interface{}) bool {
		gv := value.(*gaugeValue)
		sb.WriteString(g.name)
		sb.WriteString(formatLabels(gv.labels))
		sb.WriteByte(' ')
		sb.WriteString(strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", math.Float64frombits(atomic.LoadUint64(&gv.bits))), "0"), "."))
		sb.WriteByte('\n')
		return true
	})
}

// Registry holds a set of metrics for exposition
type Registry struct {
	mu      sync.Mutex
	metrics []Metric
	byName  map[string]Metric
}

// NewRegistry creates a new metric registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Metric)}
}

// NewCounter creates and registers a counter
func (r *Registry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing.(*Counter)
	}
	c := NewCounter(name, help)
	r.metrics = append(r.metrics, c)
	r.byName[name] = c
	return c
}

// NewGauge creates and registers a gauge
func (r *Registry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		return existing.(*Gauge)
	}
	g := NewGauge(name, help)
	r.metrics = append(r.metrics, g)
	r.byName[name] = g
	return g
}

// Expose renders all registered metrics in Prometheus text format
func (r *Registry) Expose() string {
	r.mu.Lock()
	metrics := make([]Metric, len(r.metrics))
	copy(metrics, r.metrics)
	r.mu.Unlock()

	var sb strings.Builder
	for _, m := range metrics {
		m.Write(&sb)
	}
	return sb.String()
}

// Handler returns an http.Handler serving the text exposition format
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, r.Expose())
	})
}
