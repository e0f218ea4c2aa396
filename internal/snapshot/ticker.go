/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package snapshot fires a periodic diagnostic callback during a
// long-running ingest (SPEC_FULL §4.10 [ADD]), adapted from the teacher's
// window.TumblingWindow ticker-driven goroutine: the same "start a ticker,
// fire a registered handler, stop on a quit channel" shape, with the
// windowed-queue accumulation replaced by a caller-supplied snapshot
// function since this ticker observes external state rather than
// buffering values of its own.
package snapshot

import (
	"sync"
	"time"
)

// Ticker fires fn every interval until Stop is called. It never mutates
// the state fn observes; it is purely an additional observation point
// alongside the always-present end-of-run summary.
type Ticker struct {
	interval time.Duration
	fn       func()

	mu     sync.Mutex
	ticker *time.Ticker
	quit   chan struct{}
}

// NewTicker creates and starts a Ticker. interval <= 0 disables it: Stop
// is then a no-op and fn is never called.
func NewTicker(interval time.Duration, fn func()) *Ticker {
	t := &Ticker{interval: interval, fn: fn}
	if interval <= 0 {
		return t
	}
	t.ticker = time.NewTicker(interval)
	t.quit = make(chan struct{})
	go t.run()
	return t
}

func (t *Ticker) run() {
	for {
		select {
		case <-t.ticker.C:
			t.fn()
		case <-t.quit:
			return
		}
	}
}

// Stop halts the ticker. Safe to call even if the ticker was never
// started (interval <= 0) or Stop was already called.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.quit)
	t.ticker = nil
}
