package pinwatch

import "pinwatch-go/pkg/metrics"

// Metrics holds the instruments shared by all watcher instances.
type Metrics struct {
	Edges       *metrics.Counter
	Recomputes  *metrics.Counter
	Commands    *metrics.Counter
	Deferrals   *metrics.Counter
	RetryPolls  *metrics.Counter
	Faults      *metrics.Counter
	CurrentTool *metrics.Gauge
}

// NewMetrics registers the pinwatch instruments on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		Edges:       reg.NewCounter("pinwatch_sensor_edges_total", "Debounced sensor edges applied"),
		Recomputes:  reg.NewCounter("pinwatch_recompute_passes_total", "Tool inference passes run"),
		Commands:    reg.NewCounter("pinwatch_commands_total", "Toolchanger sync commands emitted"),
		Deferrals:   reg.NewCounter("pinwatch_sync_deferrals_total", "Sync decisions deferred on busy toolchanger"),
		RetryPolls:  reg.NewCounter("pinwatch_retry_polls_total", "Busy polls while a sync target was parked"),
		Faults:      reg.NewCounter("pinwatch_contained_faults_total", "Panics contained at callback boundaries"),
		CurrentTool: reg.NewGauge("pinwatch_current_tool", "Inferred tool (-2 unknown, -1 unmounted, >=0 index)"),
	}
}

// newDetachedMetrics backs a watcher constructed without a registry.
func newDetachedMetrics() *Metrics {
	return NewMetrics(metrics.NewRegistry())
}

func watcherLabels(name string) metrics.Labels {
	return metrics.Labels{"watcher": name}
}

func metrics2(name, key, value string) metrics.Labels {
	return metrics.Labels{"watcher": name, key: value}
}
