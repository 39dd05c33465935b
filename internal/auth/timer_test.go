// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/levelup/authflow/internal/auth"
)

func TestScope_AfterFunc(t *testing.T) {
	t.Run("fires and releases the timer", func(t *testing.T) {
		clock := newFakeScheduler()
		scope := auth.NewScope(clock)
		fired := 0

		scope.AfterFunc(time.Second, func() { fired++ })
		assert.Equal(t, 1, scope.Pending())

		clock.Advance(time.Second)
		assert.Equal(t, 1, fired)
		assert.Zero(t, scope.Pending())
	})

	t.Run("stop prevents the callback", func(t *testing.T) {
		clock := newFakeScheduler()
		scope := auth.NewScope(clock)
		fired := false

		timer := scope.AfterFunc(time.Second, func() { fired = true })
		assert.True(t, timer.Stop())
		assert.False(t, timer.Stop())

		clock.Advance(time.Minute)
		assert.False(t, fired)
		assert.Zero(t, scope.Pending())
	})

	t.Run("stop after firing reports false", func(t *testing.T) {
		clock := newFakeScheduler()
		scope := auth.NewScope(clock)

		timer := scope.AfterFunc(time.Second, func() {})
		clock.Advance(time.Second)
		assert.False(t, timer.Stop())
	})
}

func TestScope_Close(t *testing.T) {
	t.Run("cancels every outstanding timer", func(t *testing.T) {
		clock := newFakeScheduler()
		scope := auth.NewScope(clock)
		fired := 0
		for i := 1; i <= 3; i++ {
			scope.AfterFunc(time.Duration(i)*time.Second, func() { fired++ })
		}

		scope.Close()
		scope.Close()
		clock.Advance(time.Minute)

		assert.Zero(t, fired)
		assert.Zero(t, scope.Pending())
		assert.Zero(t, clock.Pending())
	})

	t.Run("refuses new timers once closed", func(t *testing.T) {
		clock := newFakeScheduler()
		scope := auth.NewScope(clock)
		scope.Close()

		timer := scope.AfterFunc(time.Second, func() { t.Fatal("closed scope fired") })
		clock.Advance(time.Minute)

		assert.False(t, timer.Stop())
		assert.Zero(t, clock.Pending())
	})
}

func TestScope_SystemScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	scope := auth.NewScope(nil)
	var fired atomic.Bool
	done := make(chan struct{})
	scope.AfterFunc(10*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})
	scope.AfterFunc(time.Hour, func() { t.Error("closed scope fired") })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
	scope.Close()

	assert.True(t, fired.Load())
	assert.Zero(t, scope.Pending())
}
