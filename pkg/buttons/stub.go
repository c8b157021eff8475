//go:build !linux

package buttons

import (
	"time"

	"pinwatch-go/pkg/config"
	"pinwatch-go/pkg/errors"
)

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns a watcher whose Watch calls fail on non-Linux
// platforms.
func NewRealWatcher(debounce time.Duration, clock func() float64) *RealWatcher {
	return &RealWatcher{}
}

// Watch is not supported on non-Linux platforms.
func (w *RealWatcher) Watch(label string, pin config.Pin, fn EdgeFunc) error {
	return errors.GPIOError("gpio not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
