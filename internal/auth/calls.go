// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package auth

import "sync"

// callTracker counts background calls. Unlike sync.WaitGroup, calls may
// start while a Wait is blocked; Wait returns once the count reaches zero.
// The zero value is ready to use.
type callTracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{} // closed while n == 0
}

func (t *callTracker) Add(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idle == nil {
		t.idle = make(chan struct{})
		close(t.idle)
	}
	if t.n == 0 && delta > 0 {
		t.idle = make(chan struct{})
	}
	t.n += delta
	if t.n < 0 {
		panic("auth: negative call count")
	}
	if t.n == 0 && delta != 0 {
		close(t.idle)
	}
}

func (t *callTracker) Done() { t.Add(-1) }

// Wait blocks until no call is in flight, including calls started after
// Wait was entered.
func (t *callTracker) Wait() {
	for {
		t.mu.Lock()
		if t.n == 0 {
			t.mu.Unlock()
			return
		}
		idle := t.idle
		t.mu.Unlock()
		<-idle
	}
}
