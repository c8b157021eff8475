package buttons

import (
	"sync"

	"pinwatch-go/pkg/config"
)

// FakeWatcher is a test double that lets tests inject edges for watched
// labels.
type FakeWatcher struct {
	mu        sync.Mutex
	callbacks map[string]EdgeFunc
	pins      map[string]config.Pin

	// WatchError, if set, is returned by Watch.
	WatchError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWatcher creates an empty FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{
		callbacks: make(map[string]EdgeFunc),
		pins:      make(map[string]config.Pin),
	}
}

// Watch records the callback for label.
func (f *FakeWatcher) Watch(label string, pin config.Pin, fn EdgeFunc) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	f.mu.Lock()
	f.callbacks[label] = fn
	f.pins[label] = pin
	f.mu.Unlock()
	return nil
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Inject delivers an edge to the callback registered for label.
// Returns false if no callback is registered.
func (f *FakeWatcher) Inject(label string, eventtime float64, level int) bool {
	f.mu.Lock()
	fn, ok := f.callbacks[label]
	f.mu.Unlock()
	if !ok {
		return false
	}
	fn(eventtime, level)
	return true
}

// Watched returns the labels with registered callbacks.
func (f *FakeWatcher) Watched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.callbacks))
	for label := range f.callbacks {
		labels = append(labels, label)
	}
	return labels
}
