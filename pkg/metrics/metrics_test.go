// Copyright (C) 2026  Pinwatch Authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "test counter")
	labels := Labels{"watcher": "toolhead"}

	if c.Get(labels) != 0 {
		t.Error("fresh counter should be 0")
	}
	c.Inc(labels)
	c.Add(labels, 3)
	if got := c.Get(labels); got != 4 {
		t.Errorf("counter = %d, want 4", got)
	}

	// Distinct label sets are independent.
	other := Labels{"watcher": "spare"}
	c.Inc(other)
	if got := c.Get(other); got != 1 {
		t.Errorf("counter for other labels = %d, want 1", got)
	}
	if got := c.Get(labels); got != 4 {
		t.Errorf("counter crossed label sets: %d", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "test gauge")
	labels := Labels{"watcher": "toolhead"}

	g.Set(labels, 1.5)
	if got := g.Get(labels); got != 1.5 {
		t.Errorf("gauge = %f, want 1.5", got)
	}
	g.Set(labels, -2)
	if got := g.Get(labels); got != -2 {
		t.Errorf("gauge = %f, want -2", got)
	}
}

func TestLabelKeyOrderIndependent(t *testing.T) {
	a := labelKey(Labels{"a": "1", "b": "2"})
	b := labelKey(Labels{"b": "2", "a": "1"})
	if a != b {
		t.Errorf("label keys differ: %q vs %q", a, b)
	}
}

func TestRegistryDedup(t *testing.T) {
	r := NewRegistry()
	c1 := r.NewCounter("dup_total", "help")
	c2 := r.NewCounter("dup_total", "other help")
	if c1 != c2 {
		t.Error("same name should return the same counter")
	}
	g1 := r.NewGauge("dup_gauge", "help")
	g2 := r.NewGauge("dup_gauge", "help")
	if g1 != g2 {
		t.Error("same name should return the same gauge")
	}
}

func TestExpose(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("edges_total", "Sensor edges")
	c.Add(Labels{"watcher": "toolhead"}, 7)
	g := r.NewGauge("current_tool", "Inferred tool")
	g.Set(Labels{"watcher": "toolhead"}, 2)

	out := r.Expose()
	for _, want := range []string{
		"# HELP edges_total Sensor edges",
		"# TYPE edges_total counter",
		`edges_total{watcher="toolhead"} 7`,
		"# TYPE current_tool gauge",
		`current_tool{watcher="toolhead"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestExposeEscapesLabels(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("esc_total", "help")
	c.Inc(Labels{"watcher": `tool"head\x`})

	out := r.Expose()
	if !strings.Contains(out, `esc_total{watcher="tool\"head\\x"} 1`) {
		t.Errorf("label not escaped:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("handler_total", "help").Inc(nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "handler_total 1") {
		t.Errorf("body missing metric:\n%s", rec.Body.String())
	}
}
