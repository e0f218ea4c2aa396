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

// Package accumulator holds the family of concurrent sinks that consume
// normalized operation records and maintain online aggregates: running
// counts, min/max/mean, reservoir-bounded percentile estimates, and a
// handful of derived ratios. Every accumulator is independently usable and
// owns its own concurrent mapping; none shares state with another.
package accumulator

import "sync/atomic"

// Accumulator is the common shape every concrete sink in this package
// satisfies, standing in for the single `record` trait the source's
// deep accumulator-class hierarchy was re-architected away from. Each
// concrete type additionally exposes its own typed Record method (the
// key and payload shapes differ per accumulator, so a single generic
// Record cannot live on this interface without erasing that typing).
type Accumulator interface {
	// Name identifies the accumulator for diagnostics output.
	Name() string
	// EntryCount returns the number of distinct keys currently held.
	EntryCount() int
	// Overflows returns the number of saturating-add overflow events
	// observed so far.
	Overflows() int64
}

// overflowCounter is an embeddable atomic counter for accumulators that
// saturate numeric totals rather than wrap on overflow (§4.3, §7
// NumericOverflow).
type overflowCounter struct {
	n atomic.Int64
}

func (c *overflowCounter) bump() {
	c.n.Add(1)
}

func (c *overflowCounter) Overflows() int64 {
	return c.n.Load()
}
