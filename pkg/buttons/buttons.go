// Package buttons delivers debounced GPIO level-change events.
// The real implementation uses the Linux GPIO character device; the fake
// implementation allows testing without hardware. Consumers receive edges
// that are already debounced, at most one callback per level change.
package buttons

import "pinwatch-go/pkg/config"

// EdgeFunc is called for each debounced level change. eventtime is in
// reactor seconds, level is 0 or 1 after invert handling.
type EdgeFunc func(eventtime float64, level int)

// Watcher registers debounced edge callbacks for labeled pins.
type Watcher interface {
	// Watch starts delivering edges for pin to fn. The callback may be
	// invoked from a foreign goroutine; callers must marshal into their
	// own execution context.
	Watch(label string, pin config.Pin, fn EdgeFunc) error

	// Close releases all watched lines.
	Close() error
}
