package buttons

import (
	"errors"
	"testing"

	"pinwatch-go/pkg/config"
)

func TestFakeWatcherInject(t *testing.T) {
	f := NewFakeWatcher()

	var gotTime float64
	var gotLevel int
	err := f.Watch("e", config.Pin{Name: "gpio17"}, func(eventtime float64, level int) {
		gotTime = eventtime
		gotLevel = level
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if !f.Inject("e", 1.5, 1) {
		t.Fatal("Inject returned false for watched label")
	}
	if gotTime != 1.5 || gotLevel != 1 {
		t.Errorf("callback got (%f, %d), want (1.5, 1)", gotTime, gotLevel)
	}

	if f.Inject("t0", 0, 0) {
		t.Error("Inject returned true for unwatched label")
	}
}

func TestFakeWatcherWatchError(t *testing.T) {
	f := NewFakeWatcher()
	f.WatchError = errors.New("line busy")

	if err := f.Watch("e", config.Pin{Name: "gpio17"}, nil); err == nil {
		t.Fatal("expected configured watch error")
	}
	if len(f.Watched()) != 0 {
		t.Error("failed watch should not register a callback")
	}
}

func TestFakeWatcherClose(t *testing.T) {
	f := NewFakeWatcher()
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.Closed {
		t.Error("Closed not set")
	}
}
