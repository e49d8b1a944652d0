// Package sleeptimer provides a cancellable one-shot delayed action.
package sleeptimer

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// DefaultResolution is how often the wall clock is polled.
const DefaultResolution = 100 * time.Millisecond

// State is a point-in-time view of the timer.
type State struct {
	Active    bool
	Remaining *time.Duration // nil when inactive
}

// Timer fires its callback once, after the delay given to Start.
// Starting again replaces the pending schedule.
type Timer struct {
	mu         sync.Mutex
	resolution time.Duration
	onFire     func()
	cancel     func()
	deadline   time.Time
	gen        uint64
	closed     bool
	wg         sync.WaitGroup
}

// New creates an inactive timer. A resolution <= 0 uses DefaultResolution.
func New(resolution time.Duration, onFire func()) *Timer {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &Timer{
		resolution: resolution,
		onFire:     onFire,
	}
}

// Start schedules the callback after d, cancelling any pending schedule.
// A non-positive d fires on the next poll. Returns false once closed.
func (t *Timer) Start(d time.Duration) bool {
	if d < 0 {
		d = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.stopLocked()
	t.gen++
	t.deadline = toWallTime(time.Now()).Add(d)
	t.cancel = t.startWallClockTimer(t.gen, t.deadline)

	zlog.Debug().Msgf("sleeptimer: started: duration=%v", d)
	return true
}

// Cancel aborts the pending schedule. No-op when inactive.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}
	t.stopLocked()
	zlog.Debug().Msg("sleeptimer: cancelled")
}

// State reports whether a schedule is pending and how long is left.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return State{}
	}
	remaining := t.deadline.Sub(toWallTime(time.Now()))
	if remaining < 0 {
		remaining = 0
	}
	remaining = remaining.Round(time.Second)
	return State{Active: true, Remaining: &remaining}
}

// Close cancels the timer and waits for its goroutine to exit.
// Later calls to Start are refused.
func (t *Timer) Close() {
	t.mu.Lock()
	t.closed = true
	t.stopLocked()
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.deadline = time.Time{}
}

// startWallClockTimer polls the wall clock until deadline.
// Returns a cancel function.
func (t *Timer) startWallClockTimer(gen uint64, deadline time.Time) func() {
	ctx, cancel := context.WithCancel(context.Background())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.resolution)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).Before(deadline) {
					continue
				}
				t.fire(gen)
				return
			}
		}
	}()

	return cancel
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.cancel == nil {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.mu.Unlock()

	zlog.Debug().Msg("sleeptimer: fired")
	if t.onFire != nil {
		t.onFire()
	}
}

// toWallTime returns the time with monotonic clock stripped, so a suspended
// host does not stretch the delay.
func toWallTime(tm time.Time) time.Time {
	return time.Unix(tm.Unix(), int64(tm.Nanosecond()))
}
