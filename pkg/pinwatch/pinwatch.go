// Package pinwatch infers which physical tool is mounted on a toolchanger
// machine from debounced binary pin states and keeps an external
// toolchanger in sync with that inference.
//
// One PinWatch instance owns a snapshot of labeled sensor states (the
// reserved label "e" for tool engagement plus t0..tN-1 for bay occupancy),
// coalesces bursts of edges into a single recompute pass, and mirrors the
// inferred tool to the toolchanger with idempotent commands, deferring
// while the toolchanger is mid-operation. All state transitions run on the
// reactor's dispatch thread.
package pinwatch

import (
	"strings"
	"sync"
	"sync/atomic"

	"pinwatch-go/pkg/buttons"
	"pinwatch-go/pkg/config"
	"pinwatch-go/pkg/errors"
	"pinwatch-go/pkg/log"
	"pinwatch-go/pkg/reactor"
)

// CommandRunner executes a script command. Fire-and-forget: the core
// never reads a response back.
type CommandRunner interface {
	RunScript(script string) error
}

// PrintStateProvider reports whether a print is in flight.
type PrintStateProvider interface {
	IsPrinting() bool
}

// ToolchangerStateProvider reports the status of a named toolchanger.
// ok is false while the toolchanger object is not yet available.
type ToolchangerStateProvider interface {
	ToolchangerStatus(name string) (status string, ok bool)
}

// ApplyFunc observes each applied inference result.
type ApplyFunc func(name string, tool int, diag Diagnostics)

// Deps are the injected collaborators for a PinWatch instance.
type Deps struct {
	Reactor     *reactor.Reactor
	Buttons     buttons.Watcher
	Commands    CommandRunner
	Printing    PrintStateProvider
	Toolchanger ToolchangerStateProvider
	Log         *log.Logger
	Metrics     *Metrics
}

// PinWatch is one configured watcher instance.
type PinWatch struct {
	name string

	reactor     *reactor.Reactor
	commands    CommandRunner
	printing    PrintStateProvider
	toolchanger ToolchangerStateProvider
	log         *log.Logger
	metrics     *Metrics

	toolchangerName string
	syncToolchanger bool
	verbose         bool
	assignDelay     float64

	// Sensor snapshot, bay count. Mutated only on the reactor thread.
	state      map[string]int
	pinByLabel map[string]config.Pin
	toolCount  int

	// Exported status: -2 unknown, -1 unmounted, >=0 tool index.
	currentTool atomic.Int64

	diagMu sync.Mutex
	diag   Diagnostics

	applyHook atomic.Pointer[ApplyFunc]

	computeTimer  *reactor.Timer
	pendingReason string

	retryTimer    *reactor.Timer
	retryArmed    bool
	pendingTarget int
	pendingValid  bool
}

// retryInterval is the toolchanger busy poll period in seconds.
const retryInterval = 0.1

// New builds a PinWatch from a [pin_watch <name>] config section and
// registers its pins with the buttons watcher. Construction fails if the
// section configures no pins.
func New(name string, sec *config.Section, deps Deps) (*PinWatch, error) {
	w := &PinWatch{
		name:        name,
		reactor:     deps.Reactor,
		commands:    deps.Commands,
		printing:    deps.Printing,
		toolchanger: deps.Toolchanger,
		log:         deps.Log,
		metrics:     deps.Metrics,
		state:       make(map[string]int),
		pinByLabel:  make(map[string]config.Pin),
	}
	if w.log == nil {
		w.log = log.New("pinwatch " + name)
	}
	if w.metrics == nil {
		w.metrics = newDetachedMetrics()
	}
	w.currentTool.Store(ToolUnknown)

	var err error
	if w.toolchangerName, err = sec.Get("toolchanger", "toolchanger"); err != nil {
		return nil, err
	}
	if w.syncToolchanger, err = sec.GetBool("sync_toolchanger", true); err != nil {
		return nil, err
	}
	if w.verbose, err = sec.GetBool("verbose", false); err != nil {
		return nil, err
	}
	if w.assignDelay, err = sec.GetFloatMin("assign_delay", 0.0, 0.0); err != nil {
		return nil, err
	}
	if w.verbose {
		w.log.SetLevel(log.DEBUG)
	}

	opts := sec.GetPrefixOptions("pin_")
	if len(opts) == 0 {
		return nil, config.NewConfigError(sec.GetName(), "",
			"no pins found, add pin_<label>: <pin> options")
	}

	maxIdx := -1
	for _, opt := range opts {
		label := strings.TrimPrefix(opt, "pin_")
		pin, err := sec.GetPin(opt)
		if err != nil {
			return nil, err
		}
		w.pinByLabel[label] = pin
		w.state[label] = 0
		if idx, ok := parseToolIndex(label); ok && idx > maxIdx {
			maxIdx = idx
		}
	}
	w.toolCount = maxIdx + 1

	w.computeTimer = w.reactor.RegisterTimer(w.computeTimerCb, reactor.NEVER)
	w.retryTimer = w.reactor.RegisterTimer(w.retryTimerCb, reactor.NEVER)

	for label, pin := range w.pinByLabel {
		if err := deps.Buttons.Watch(label, pin, w.edgeFunc(label)); err != nil {
			return nil, err
		}
	}

	w.log.Info("configured %d pin(s), tool count %d, toolchanger %q, assign_delay %.3fs",
		len(opts), w.toolCount, w.toolchangerName, w.assignDelay)

	// Initial compute so status is valid before the first edge.
	w.scheduleCompute("startup", 0)
	return w, nil
}

// Name returns the watcher name.
func (w *PinWatch) Name() string {
	return w.name
}

// CurrentTool returns the latest inferred tool without blocking and
// without triggering recomputation.
func (w *PinWatch) CurrentTool() int {
	return int(w.currentTool.Load())
}

// LastDiagnostics returns the diagnostic tuple of the latest inference
// pass.
func (w *PinWatch) LastDiagnostics() Diagnostics {
	w.diagMu.Lock()
	defer w.diagMu.Unlock()
	return w.diag
}

// ToolCount returns the number of configured tool bays.
func (w *PinWatch) ToolCount() int {
	return w.toolCount
}

// SetApplyHook registers an observer called after every inference pass.
// Safe to call while the reactor is running; the hook itself runs on the
// reactor thread and must not block.
func (w *PinWatch) SetApplyHook(fn ApplyFunc) {
	w.applyHook.Store(&fn)
}

// edgeFunc returns the debounced edge callback for label. Edges arrive on
// a foreign goroutine and are marshaled onto the reactor thread.
func (w *PinWatch) edgeFunc(label string) buttons.EdgeFunc {
	return func(eventtime float64, level int) {
		w.reactor.RunAsync(func(float64) {
			w.contain("pin callback", func() {
				w.handleEdge(label, level, eventtime)
			})
		})
	}
}

// handleEdge applies one debounced level change. Runs on the reactor
// thread.
func (w *PinWatch) handleEdge(label string, level int, eventtime float64) {
	if !w.updateSensor(label, level) {
		return
	}
	w.metrics.Edges.Inc(metrics2(w.name, "label", label))
	w.log.Debug("%s -> %d (t=%.6f)", label, level, eventtime)
	w.scheduleCompute(label, w.assignDelay)
}

// updateSensor stores a sensor value and reports whether it changed.
// Duplicate values are suppressed and unknown labels are stored as-is;
// semantic validation is the inference engine's job.
func (w *PinWatch) updateSensor(label string, value int) bool {
	if cur, ok := w.state[label]; ok && cur == value {
		return false
	}
	w.state[label] = value
	return true
}

// scheduleCompute arms the recompute timer delay seconds from now,
// superseding any pending fire so a burst of edges collapses into one
// inference pass after the quiet period.
func (w *PinWatch) scheduleCompute(reason string, delay float64) {
	w.pendingReason = reason
	if delay < 0 {
		delay = 0
	}
	w.reactor.UpdateTimer(w.computeTimer, w.reactor.Monotonic()+delay)
}

// computeTimerCb runs one inference pass and hands the result to the sync
// dispatcher. Single-shot: it never re-arms itself.
func (w *PinWatch) computeTimerCb(eventtime float64) float64 {
	w.contain("compute/apply", func() {
		ct, diag := InferTool(w.state, w.toolCount)
		w.currentTool.Store(int64(ct))
		w.diagMu.Lock()
		w.diag = diag
		w.diagMu.Unlock()

		w.metrics.Recomputes.Inc(watcherLabels(w.name))
		w.metrics.CurrentTool.Set(watcherLabels(w.name), float64(ct))
		w.log.Debug("APPLY current_tool=%d (reason=%s N=%d ex=%d S=%d empties=%d bad=%v)",
			ct, w.pendingReason, diag.N, diag.Ex, diag.S, diag.Empties, diag.Bad)

		if hook := w.applyHook.Load(); hook != nil {
			(*hook)(w.name, ct, diag)
		}
		if w.syncToolchanger {
			w.requestSync(ct)
		}
	})
	return reactor.NEVER
}

// contain runs fn and converts any panic into a logged diagnostic. A fault
// in a callback or timer body must never take down the daemon.
func (w *PinWatch) contain(where string, fn func()) {
	defer func() {
		if e := errors.FromPanic(recover()); e != nil {
			w.metrics.Faults.Inc(metrics2(w.name, "where", where))
			w.log.WithField("panic", e.Message).Error("contained fault in %s", where)
		}
	}()
	fn()
}
