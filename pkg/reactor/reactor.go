// Package reactor provides a single-threaded timer and event dispatch loop.
// All pinwatch state transitions run as reactor callbacks, so the packages
// built on top of it need no locking of their own: edges, recompute passes
// and sync decisions execute as discrete steps on one logical thread.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer wake time sentinels.
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// TimerCallback is invoked when a timer comes due. It receives the event
// time and returns the next wake time, or NEVER for a single-shot timer.
type TimerCallback func(eventtime float64) float64

// Timer is a registered timer handle. A timer stays registered after it
// fires with NEVER; re-arm it with UpdateTimer to get single-shot,
// re-armable semantics where arming supersedes any pending fire.
type Timer struct {
	id       uint64
	callback TimerCallback

	mu       sync.Mutex
	waketime float64
	running  bool
}

// Waketime returns the timer's current wake time.
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Pending reports whether the timer is armed to fire.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime < NEVER
}

// Reactor runs timers and injected callbacks on a single dispatch goroutine.
type Reactor struct {
	mu       sync.Mutex
	timers   []*Timer
	nextID   uint64
	nextWake float64

	// Work injected from foreign goroutines (GPIO events, websocket reads).
	asyncQueue chan func(eventtime float64)

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	startTime time.Time
}

// New creates a reactor. Call Run to start dispatching.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		nextWake:   NEVER,
		asyncQueue: make(chan func(eventtime float64), 256),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Monotonic returns the reactor clock in seconds since startup.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer registers a timer that first fires at waketime.
// Use NEVER to register a dormant timer that is armed later via UpdateTimer.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &Timer{
		id:       atomic.AddUint64(&r.nextID, 1),
		callback: callback,
		waketime: waketime,
	}
	r.timers = append(r.timers, t)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	return t
}

// UpdateTimer re-arms a timer to fire at waketime, replacing any pending
// fire. There is never more than one outstanding fire per timer.
func (r *Reactor) UpdateTimer(t *Timer, waketime float64) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.waketime = waketime
	t.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
}

// UnregisterTimer removes a timer entirely.
func (r *Reactor) UnregisterTimer(t *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.mu.Lock()
	t.waketime = NEVER
	t.mu.Unlock()

	for i, cur := range r.timers {
		if cur.id == t.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// RunAsync schedules fn to run on the dispatch goroutine. Safe to call from
// any goroutine. If the reactor is stopped or the queue is full the work is
// dropped; callers treat delivery as best effort.
func (r *Reactor) RunAsync(fn func(eventtime float64)) bool {
	select {
	case r.asyncQueue <- fn:
		return true
	default:
		return false
	}
}

// Run starts the dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the dispatch loop to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch loop has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	for r.running.Load() {
		eventtime := r.Monotonic()
		r.drainAsync(eventtime)
		timeout := r.checkTimers(eventtime)

		if timeout <= 0 {
			continue
		}
		delay := time.Duration(timeout * float64(time.Second))
		if delay > time.Second {
			delay = time.Second
		}
		select {
		case <-time.After(delay):
		case fn := <-r.asyncQueue:
			fn(r.Monotonic())
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reactor) drainAsync(eventtime float64) {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn(eventtime)
		default:
			return
		}
	}
}

// checkTimers fires due timers and returns the delay until the next one.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	timers := make([]*Timer, len(r.timers))
	copy(timers, r.timers)
	r.nextWake = NEVER
	r.mu.Unlock()

	for _, t := range timers {
		t.mu.Lock()
		if eventtime >= t.waketime {
			t.waketime = NEVER
			t.running = true
			t.mu.Unlock()

			next := t.callback(eventtime)

			t.mu.Lock()
			t.running = false
			if next < t.waketime {
				t.waketime = next
			}
		}
		waketime := t.waketime
		t.mu.Unlock()

		r.mu.Lock()
		if waketime < r.nextWake {
			r.nextWake = waketime
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	delay := r.nextWake - eventtime
	r.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	return delay
}
