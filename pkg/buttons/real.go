//go:build linux

package buttons

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"pinwatch-go/pkg/config"
)

// RealWatcher watches GPIO lines on actual hardware using the Linux GPIO
// character device, with kernel-side debouncing where supported.
type RealWatcher struct {
	mu       sync.Mutex
	chips    map[string]*gpiocdev.Chip
	lines    []*gpiocdev.Line
	debounce time.Duration
	clock    func() float64
}

// NewRealWatcher creates a watcher. debounce is applied to every requested
// line; clock converts event delivery into reactor seconds.
func NewRealWatcher(debounce time.Duration, clock func() float64) *RealWatcher {
	return &RealWatcher{
		chips:    make(map[string]*gpiocdev.Chip),
		debounce: debounce,
		clock:    clock,
	}
}

func (w *RealWatcher) chip(name string) (*gpiocdev.Chip, error) {
	if c, ok := w.chips[name]; ok {
		return c, nil
	}
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	w.chips[name] = c
	return c, nil
}

// Watch requests pin with edge detection and delivers debounced level
// changes to fn.
func (w *RealWatcher) Watch(label string, pin config.Pin, fn EdgeFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	offset, err := pin.Offset()
	if err != nil {
		return err
	}
	chip, err := w.chip(pin.Chip)
	if err != nil {
		return err
	}

	handler := func(evt gpiocdev.LineEvent) {
		level := 0
		if evt.Type == gpiocdev.LineEventRisingEdge {
			level = 1
		}
		if pin.Invert {
			level = 1 - level
		}
		fn(w.clock(), level)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
	}
	if w.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(w.debounce))
	}
	switch pin.Pullup {
	case 1:
		opts = append(opts, gpiocdev.WithPullUp)
	case -1:
		opts = append(opts, gpiocdev.WithPullDown)
	}

	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		return fmt.Errorf("request line %s (%s:%d): %w", label, pin.Chip, offset, err)
	}
	w.lines = append(w.lines, line)
	return nil
}

// Close releases all requested lines and chips.
func (w *RealWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, line := range w.lines {
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.lines = nil
	for _, chip := range w.chips {
		if err := chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.chips = make(map[string]*gpiocdev.Chip)
	return firstErr
}
