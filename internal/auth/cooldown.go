// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import (
	"sync"
	"time"
)

// Email cooldown configuration.
const (
	DefaultResendCooldown = 60 * time.Second
	countdownInterval     = time.Second
)

// ResendState is a snapshot of a limiter's bookkeeping.
type ResendState struct {
	Attempts   int
	LastSentAt time.Time
	Remaining  int
}

// CooldownLimiter spaces out email sends. Only successful sends start the
// window; a failed send leaves the user free to try again.
type CooldownLimiter struct {
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	attempts   int
	lastSentAt time.Time
}

// NewCooldownLimiter creates a limiter with the given window. A non-positive
// window falls back to DefaultResendCooldown; a nil clock uses time.Now.
func NewCooldownLimiter(window time.Duration, now func() time.Time) *CooldownLimiter {
	if window <= 0 {
		window = DefaultResendCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &CooldownLimiter{window: window, now: now}
}

// Window returns the configured cooldown window.
func (l *CooldownLimiter) Window() time.Duration {
	return l.window
}

// CanSend reports whether the cooldown has elapsed.
func (l *CooldownLimiter) CanSend() bool {
	return l.RemainingSeconds() == 0
}

// RecordSend starts a new cooldown window at the current time.
func (l *CooldownLimiter) RecordSend() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	l.lastSentAt = l.now()
}

// RemainingSeconds returns the whole seconds left in the window, rounded up so
// that zero is only reported once the window has fully elapsed.
func (l *CooldownLimiter) RemainingSeconds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked()
}

func (l *CooldownLimiter) remainingLocked() int {
	if l.lastSentAt.IsZero() {
		return 0
	}
	left := l.window - l.now().Sub(l.lastSentAt)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// State returns a snapshot of the limiter.
func (l *CooldownLimiter) State() ResendState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ResendState{
		Attempts:   l.attempts,
		LastSentAt: l.lastSentAt,
		Remaining:  l.remainingLocked(),
	}
}

// Countdown calls onTick with the remaining seconds once per second while the
// cooldown is running, ending with a final tick of zero. It schedules nothing
// when the cooldown is not running. The returned timer is owned by scope.
func (l *CooldownLimiter) Countdown(scope *Scope, onTick func(remaining int)) Timer {
	c := &countdown{limiter: l, scope: scope, onTick: onTick}
	if l.RemainingSeconds() == 0 {
		return stoppedTimer{}
	}
	c.schedule()
	return c
}

type countdown struct {
	limiter *CooldownLimiter
	scope   *Scope
	onTick  func(int)

	mu      sync.Mutex
	current Timer
	stopped bool
}

func (c *countdown) schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.current = c.scope.AfterFunc(countdownInterval, c.tick)
}

func (c *countdown) tick() {
	remaining := c.limiter.RemainingSeconds()
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if remaining > 0 {
		c.schedule()
	}
}

// Stop cancels the next tick.
func (c *countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stopped = true
	if c.current != nil {
		return c.current.Stop()
	}
	return false
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }
