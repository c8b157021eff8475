package pinwatch

import (
	"fmt"

	"pinwatch-go/pkg/reactor"
)

// Toolchanger statuses that block command dispatch.
const (
	statusChanging     = "changing"
	statusInitializing = "initializing"
)

// requestSync decides whether the inferred tool should be mirrored to the
// toolchanger. While printing, only a positive tool identity is forwarded;
// an in-flight print is never interrupted by an unselect, whether it comes
// from a sensor glitch or a genuine tool removal.
func (w *PinWatch) requestSync(ct int) {
	if w.isPrinting() {
		if ct >= 0 {
			w.syncOrDefer(ct)
		} else {
			w.log.Debug("PRINTING -> skip UNSELECT (ct=%d)", ct)
		}
		return
	}
	// Not printing: full mirror.
	w.syncOrDefer(ct)
}

// syncOrDefer dispatches immediately, or parks the target and polls the
// toolchanger until it is free. A newer decision overwrites the parked
// target; only the most recent one is ever dispatched.
func (w *PinWatch) syncOrDefer(ct int) {
	if w.toolchangerBusy() {
		w.pendingTarget = ct
		w.pendingValid = true
		w.metrics.Deferrals.Inc(watcherLabels(w.name))
		if !w.retryArmed {
			w.retryArmed = true
			w.reactor.UpdateTimer(w.retryTimer, w.reactor.Monotonic()+retryInterval)
		}
		w.log.Debug("toolchanger busy -> defer (ct=%d)", ct)
		return
	}
	w.doSync(ct)
}

// retryTimerCb polls the toolchanger. While still busy it re-arms itself
// without side effects; on the first non-busy poll it dispatches the
// latest parked target exactly once.
func (w *PinWatch) retryTimerCb(eventtime float64) float64 {
	next := reactor.NEVER
	w.contain("toolchanger retry", func() {
		if !w.pendingValid {
			return
		}
		w.metrics.RetryPolls.Inc(watcherLabels(w.name))
		if w.toolchangerBusy() {
			next = eventtime + retryInterval
			return
		}
		ct := w.pendingTarget
		w.pendingValid = false
		w.doSync(ct)
	})
	if next >= reactor.NEVER {
		w.retryArmed = false
	}
	return next
}

// doSync emits exactly one command for the decision. Runs only when the
// toolchanger is not busy.
func (w *PinWatch) doSync(ct int) {
	var script, kind string
	if ct >= 0 {
		script = fmt.Sprintf("INITIALIZE_TOOLCHANGER T=%d", ct)
		kind = "select"
	} else {
		script = "UNSELECT_TOOL"
		kind = "unselect"
	}
	if err := w.commands.RunScript(script); err != nil {
		w.log.WithError(err).Warn("failed to run %q", script)
		return
	}
	w.metrics.Commands.Inc(metrics2(w.name, "command", kind))
	w.log.Debug("sync -> %s (ct=%d)", script, ct)
}

// isPrinting defaults to false when no print-state provider is wired.
func (w *PinWatch) isPrinting() bool {
	if w.printing == nil {
		return false
	}
	return w.printing.IsPrinting()
}

// toolchangerBusy defaults to false when the provider or the toolchanger
// object is absent, so the dispatcher proceeds rather than hangs.
func (w *PinWatch) toolchangerBusy() bool {
	if w.toolchanger == nil {
		return false
	}
	st, ok := w.toolchanger.ToolchangerStatus(w.toolchangerName)
	if !ok {
		return false
	}
	return st == statusChanging || st == statusInitializing
}
