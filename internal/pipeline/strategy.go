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

package pipeline

import (
	"time"

	"github.com/mongolyzer/mongolyzer/internal/logger"
)

// Overflow strategy names, adapted from the teacher's stream.Strategy*
// constants.
const (
	StrategyBlock  = "block"
	StrategyExpand = "expand"
	StrategyDrop   = "drop"
	StrategyPersist = "persist"
)

// chunk is a batch of admitted lines dispatched to the worker pool as a
// single unit (§4.10, default size B = 25000).
type chunk struct {
	lines [][]byte
}

// overflowStrategy governs what happens when the bounded work queue
// between the coordinator and the worker pool is full, adapted from the
// teacher's stream.DataProcessingStrategy trio (BlockingStrategy /
// ExpansionStrategy / DropStrategy) in stream/strategy.go.
type overflowStrategy interface {
	dispatch(c *Coordinator, ch chunk)
}

// blockingStrategy waits for room in the work queue, never dropping a
// chunk. BlockTimeout only ends the first wait; the send that follows
// blocks until room appears.
type blockingStrategy struct {
	timeout time.Duration
}

func (s *blockingStrategy) dispatch(c *Coordinator, ch chunk) {
	if s.timeout <= 0 {
		c.work <- ch
		return
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case c.work <- ch:
	case <-timer.C:
		c.work <- ch
	}
}

// expandingStrategy grows the work queue once under pressure before
// falling back to blocking, matching the teacher's
// expandDataChannel-then-retry shape. This is the spec's documented
// default (SPEC_FULL §4.10).
type expandingStrategy struct{}

func (s *expandingStrategy) dispatch(c *Coordinator, ch chunk) {
	select {
	case c.work <- ch:
		return
	default:
	}
	c.expandWorkQueue()
	select {
	case c.work <- ch:
		return
	default:
	}
	c.work <- ch
}

// droppingStrategy drops a chunk under sustained backpressure after a
// short, usage-tiered retry window, counting the drop as a diagnostic
// event rather than blocking the coordinator's read loop.
type droppingStrategy struct{}

func (s *droppingStrategy) dispatch(c *Coordinator, ch chunk) {
	select {
	case c.work <- ch:
		return
	default:
	}

	usage := float64(len(c.work)) / float64(cap(c.work))
	var wait time.Duration
	switch {
	case usage > 0.99:
		wait = 1 * time.Millisecond
	case usage > 0.95:
		wait = 200 * time.Microsecond
	default:
		c.counters.chunksDropped.Add(1)
		logger.Warn("pipeline: dropping chunk, work queue at %.0f%% usage", usage*100)
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case c.work <- ch:
	case <-timer.C:
		c.counters.chunksDropped.Add(1)
		logger.Warn("pipeline: dropping chunk after %s wait, work queue at %.0f%% usage", wait, usage*100)
	}
}

// persistingStrategy spills a chunk to the on-disk store when the
// work queue is full; spilled chunks are replayed once, after every source
// has been read (SPEC_FULL §4.10
// [ADD], adapted and substantially trimmed from stream/persistence.go).
type persistingStrategy struct {
	spill *spillStore
}

func (s *persistingStrategy) dispatch(c *Coordinator, ch chunk) {
	select {
	case c.work <- ch:
		return
	default:
	}
	if s.spill == nil {
		c.counters.chunksDropped.Add(1)
		return
	}
	if err := s.spill.Write(ch); err != nil {
		c.counters.chunksDropped.Add(1)
		logger.Warn("pipeline: spill write failed, dropping chunk: %v", err)
		return
	}
	c.counters.chunksSpilled.Add(1)
}
