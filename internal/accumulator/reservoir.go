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

package accumulator

import (
	"math"
	"sort"
	"sync"
)

// ReservoirCap is N₀, the per-stream sample cap every reservoir enforces.
// Values beyond the cap are silently ignored rather than replacing an
// earlier sample, an intentional bias toward early-in-run tails that keeps
// memory bounded (§3).
const ReservoirCap = 10000

// Reservoir is a bounded, append-only sample set used for percentile
// estimation. It is adapted from the teacher's circular queue
// (utils/queue.Queue) as a mutex-guarded slice that grows on demand up to
// the cap, with the circular overwrite semantics dropped in favor of "stop
// accepting past the cap" — the reservoir never wraps.
type Reservoir struct {
	mu     sync.Mutex
	values []float64
	cap    int
}

// NewReservoir creates a reservoir capped at ReservoirCap samples.
func NewReservoir() *Reservoir {
	return &Reservoir{values: make([]float64, 0, 64), cap: ReservoirCap}
}

// Add appends v if the reservoir has not yet reached its cap. Returns false
// when the value was dropped for being past the cap.
func (r *Reservoir) Add(v float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) >= r.cap {
		return false
	}
	r.values = append(r.values, v)
	return true
}

// Len returns the number of samples currently held.
func (r *Reservoir) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Percentile returns the rank-p percentile (0 <= p <= 1) via linear
// interpolation over the sorted sample set, matching the teacher's own
// sort-then-index approach in functions.PercentileAggregatorFunction.
// Returns 0 when the reservoir is empty, and always a value in
// [min, max] otherwise (§8).
func (r *Reservoir) Percentile(p float64) float64 {
	r.mu.Lock()
	if len(r.values) == 0 {
		r.mu.Unlock()
		return 0
	}
	sorted := make([]float64, len(r.values))
	copy(sorted, r.values)
	r.mu.Unlock()

	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Reset clears all retained samples.
func (r *Reservoir) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = r.values[:0]
}
