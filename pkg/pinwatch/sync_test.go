package pinwatch

import (
	"testing"
	"time"
)

// mountInto drives the snapshot to Mounted(bay) for a 3-bay config.
func (h *testHarness) mountInto(bay int) {
	h.inject("e", 1)
	for i := 0; i < 3; i++ {
		level := 1
		if i == bay {
			level = 0
		}
		h.inject("t"+string(rune('0'+i)), level)
	}
}

// park drives the snapshot to Unmounted for a 3-bay config.
func (h *testHarness) park() {
	h.inject("e", 0)
	for i := 0; i < 3; i++ {
		h.inject("t"+string(rune('0'+i)), 1)
	}
}

func TestIdleMirrorsInference(t *testing.T) {
	h := newTestHarness(t, syncConfig)

	// Startup inference is Unknown; idle mirror emits an unselect.
	waitFor(t, time.Second, func() bool { return h.runner.count() == 1 }, "startup unselect never emitted")
	if got := h.runner.all()[0]; got != "UNSELECT_TOOL" {
		t.Fatalf("expected UNSELECT_TOOL at startup, got %q", got)
	}

	h.mountInto(1)
	waitFor(t, time.Second, func() bool { return h.runner.count() == 2 }, "select never emitted")
	if got := h.runner.all()[1]; got != "INITIALIZE_TOOLCHANGER T=1" {
		t.Fatalf("expected select for bay 1, got %q", got)
	}

	h.park()
	waitFor(t, time.Second, func() bool { return h.runner.count() == 3 }, "unselect never emitted")
	if got := h.runner.all()[2]; got != "UNSELECT_TOOL" {
		t.Fatalf("expected UNSELECT_TOOL after park, got %q", got)
	}
}

func TestPrintingNeverUnselects(t *testing.T) {
	h := newTestHarness(t, syncConfig)
	h.status.setPrinting(true)

	// Startup Unknown while printing: no command at all.
	waitFor(t, time.Second, func() bool { return h.recomputes() >= 1 }, "startup compute never ran")
	time.Sleep(100 * time.Millisecond)
	if got := h.runner.count(); got != 0 {
		t.Fatalf("expected no command while printing with Unknown, got %v", h.runner.all())
	}

	// A positive identity is still forwarded mid-print.
	h.mountInto(0)
	waitFor(t, time.Second, func() bool { return h.runner.count() == 1 }, "select never emitted while printing")
	if got := h.runner.all()[0]; got != "INITIALIZE_TOOLCHANGER T=0" {
		t.Fatalf("expected select for bay 0, got %q", got)
	}

	// Removing the tool mid-print must not unselect.
	h.park()
	waitFor(t, time.Second, func() bool { return h.watch.CurrentTool() == ToolUnmounted }, "park never inferred")
	time.Sleep(100 * time.Millisecond)
	if got := h.runner.count(); got != 1 {
		t.Fatalf("unselect emitted while printing: %v", h.runner.all())
	}
}

func TestBusyDefersUntilFree(t *testing.T) {
	h := newTestHarness(t, syncConfig)
	h.status.setStatus("changing", true)

	waitFor(t, time.Second, func() bool { return h.recomputes() >= 1 }, "startup compute never ran")

	// Busy through several retry intervals: nothing is emitted.
	time.Sleep(350 * time.Millisecond)
	if got := h.runner.count(); got != 0 {
		t.Fatalf("command emitted while busy: %v", h.runner.all())
	}
	if polls := h.metrics.RetryPolls.Get(watcherLabels("tester")); polls < 2 {
		t.Errorf("expected repeated busy polls, got %d", polls)
	}

	// First non-busy poll dispatches exactly once.
	h.status.setStatus("ready", true)
	waitFor(t, time.Second, func() bool { return h.runner.count() == 1 }, "deferred command never dispatched")
	time.Sleep(250 * time.Millisecond)
	if got := h.runner.count(); got != 1 {
		t.Fatalf("expected exactly one dispatch, got %v", h.runner.all())
	}
	if got := h.runner.all()[0]; got != "UNSELECT_TOOL" {
		t.Fatalf("expected UNSELECT_TOOL, got %q", got)
	}
}

func TestBusyDeferralDispatchesLatestDecision(t *testing.T) {
	h := newTestHarness(t, syncConfig)
	h.status.setStatus("initializing", true)

	// Startup parks an unselect; a newer decision overwrites it.
	waitFor(t, time.Second, func() bool { return h.recomputes() >= 1 }, "startup compute never ran")
	h.mountInto(2)
	waitFor(t, time.Second, func() bool { return h.recomputes() >= 2 }, "mount never recomputed")

	h.status.setStatus("ready", true)
	waitFor(t, time.Second, func() bool { return h.runner.count() == 1 }, "deferred command never dispatched")
	if got := h.runner.all()[0]; got != "INITIALIZE_TOOLCHANGER T=2" {
		t.Fatalf("expected latest decision (select T=2), got %q", got)
	}
	time.Sleep(250 * time.Millisecond)
	if got := h.runner.count(); got != 1 {
		t.Fatalf("stale decision also dispatched: %v", h.runner.all())
	}
}

func TestUnknownToolchangerStatusIsNotBusy(t *testing.T) {
	h := newTestHarness(t, syncConfig)
	// Provider has no data yet (ok=false): dispatch proceeds.
	h.status.setStatus("changing", false)
	waitFor(t, time.Second, func() bool { return h.runner.count() == 1 }, "dispatch blocked by absent toolchanger")
}

func TestSyncDisabledEmitsNothing(t *testing.T) {
	h := newTestHarness(t, baseConfig)
	waitFor(t, time.Second, func() bool { return h.recomputes() >= 1 }, "startup compute never ran")
	h.mountInto(1)
	waitFor(t, time.Second, func() bool { return h.watch.CurrentTool() == 1 }, "mount never inferred")
	time.Sleep(100 * time.Millisecond)
	if got := h.runner.count(); got != 0 {
		t.Fatalf("sync disabled but commands emitted: %v", h.runner.all())
	}
}
