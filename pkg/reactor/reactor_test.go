package reactor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonotonic(t *testing.T) {
	r := New()
	defer r.End()

	t1 := r.Monotonic()
	time.Sleep(10 * time.Millisecond)
	t2 := r.Monotonic()

	if t2 <= t1 {
		t.Errorf("Monotonic time not increasing: %f <= %f", t2, t1)
	}
}

func TestTimerFiresOnce(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NOW)

	r.Run()
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("Timer callback called %d times, expected 1", called.Load())
	}
}

func TestTimerRepeatsViaReturnValue(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		if called.Add(1) < 3 {
			return eventtime + 0.01
		}
		return NEVER
	}, NOW)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() < 3 {
		t.Errorf("Timer callback called %d times, expected at least 3", called.Load())
	}
}

func TestDormantTimerArmedByUpdate(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NEVER)

	r.Run()
	time.Sleep(30 * time.Millisecond)
	if called.Load() != 0 {
		t.Fatal("dormant timer fired")
	}

	r.UpdateTimer(timer, NOW)
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("Timer callback called %d times after arming, expected 1", called.Load())
	}
}

func TestUpdateTimerSupersedesPendingFire(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NEVER)

	r.Run()
	defer func() {
		r.End()
		r.Wait()
	}()

	// Re-arm repeatedly inside the original delay: only the last fires.
	for i := 0; i < 5; i++ {
		r.UpdateTimer(timer, r.Monotonic()+0.05)
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("Timer fired %d times, expected 1 (coalesced)", called.Load())
	}
}

func TestUnregisterTimer(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, r.Monotonic()+0.05)
	r.UnregisterTimer(timer)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 0 {
		t.Errorf("Timer callback called %d times after unregister, expected 0", called.Load())
	}
}

func TestRunAsync(t *testing.T) {
	r := New()

	var called atomic.Bool
	r.Run()
	if !r.RunAsync(func(eventtime float64) {
		called.Store(true)
	}) {
		t.Fatal("RunAsync rejected work")
	}

	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if !called.Load() {
		t.Error("async callback was not executed")
	}
}

func TestAsyncRunsOnDispatchThread(t *testing.T) {
	r := New()

	// An async callback arming a timer must be observed promptly.
	var fired atomic.Bool
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		fired.Store(true)
		return NEVER
	}, NEVER)

	r.Run()
	r.RunAsync(func(eventtime float64) {
		r.UpdateTimer(timer, eventtime)
	})

	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if !fired.Load() {
		t.Error("timer armed from async callback never fired")
	}
}

func TestPending(t *testing.T) {
	r := New()
	defer r.End()

	timer := r.RegisterTimer(func(eventtime float64) float64 { return NEVER }, NEVER)
	if timer.Pending() {
		t.Error("dormant timer reported pending")
	}
	r.UpdateTimer(timer, r.Monotonic()+10)
	if !timer.Pending() {
		t.Error("armed timer not reported pending")
	}
}

func TestConstants(t *testing.T) {
	if NOW != 0.0 {
		t.Errorf("NOW should be 0.0, got %f", NOW)
	}
	if NEVER < 1e15 {
		t.Errorf("NEVER should be very large, got %f", NEVER)
	}
}
