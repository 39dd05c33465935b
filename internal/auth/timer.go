// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already ran
	// or was already stopped.
	Stop() bool
}

// Scheduler runs a callback after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler schedules callbacks on the runtime timer.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scope owns the timers started for one view. Closing the scope stops every
// timer it still owns and refuses new ones, so nothing scheduled from a torn
// down view can fire afterwards.
type Scope struct {
	scheduler Scheduler

	mu     sync.Mutex
	timers map[*scopedTimer]struct{}
	closed bool
}

// NewScope creates a Scope on top of scheduler.
func NewScope(scheduler Scheduler) *Scope {
	if scheduler == nil {
		scheduler = SystemScheduler{}
	}
	return &Scope{
		scheduler: scheduler,
		timers:    make(map[*scopedTimer]struct{}),
	}
}

type scopedTimer struct {
	scope *Scope
	inner Timer

	mu      sync.Mutex
	stopped bool
	fired   bool
}

// Stop cancels the timer and releases it from its scope.
func (t *scopedTimer) Stop() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.stopped = true
	inner := t.inner
	t.mu.Unlock()

	t.scope.release(t)
	if inner != nil {
		inner.Stop()
	}
	return true
}

func (t *scopedTimer) fire(f func()) {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()

	t.scope.release(t)
	f()
}

// AfterFunc schedules f after d. On a closed scope it returns a timer that
// never fires.
func (s *Scope) AfterFunc(d time.Duration, f func()) Timer {
	t := &scopedTimer{scope: s}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.stopped = true
		return t
	}
	s.timers[t] = struct{}{}
	s.mu.Unlock()

	inner := s.scheduler.AfterFunc(d, func() { t.fire(f) })
	t.mu.Lock()
	t.inner = inner
	t.mu.Unlock()
	return t
}

// Close stops every outstanding timer. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := make([]*scopedTimer, 0, len(s.timers))
	for t := range s.timers {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.Stop()
	}
}

// Pending returns how many timers the scope still owns.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scope) release(t *scopedTimer) {
	s.mu.Lock()
	delete(s.timers, t)
	s.mu.Unlock()
}
