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
	"sort"
	"sync"
	"time"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// SlowPlanRecord is one retained entry in the top-N slowest-planning
// stream (§4.7).
type SlowPlanRecord struct {
	Namespace          model.Namespace
	OpType             model.OpType
	PlanSummary        string
	SanitizedFilter    string
	QueryHash          string
	AppName            string
	PlanningTimeMicros int64
	Timestamp          time.Time
}

// SlowPlanningAccumulator is append-only; Report sorts and truncates to N
// on every call rather than maintaining a sorted structure incrementally,
// trading a little read-time cost for a trivially-correct, lock-simple
// write path under concurrent append (§4.7).
type SlowPlanningAccumulator struct {
	overflowCounter
	mu      sync.Mutex
	records []SlowPlanRecord
	n       int
}

// NewSlowPlanningAccumulator creates an accumulator that retains every
// record across the run and reports up to n of them; n <= 0 means "report
// everything."
func NewSlowPlanningAccumulator(n int) *SlowPlanningAccumulator {
	return &SlowPlanningAccumulator{n: n}
}

func (a *SlowPlanningAccumulator) Name() string { return "slow-planning" }

func (a *SlowPlanningAccumulator) EntryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Record appends rec unconditionally; Report does the truncation.
func (a *SlowPlanningAccumulator) Record(rec SlowPlanRecord) {
	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
}

// Report returns the top-N records sorted descending by planning time.
func (a *SlowPlanningAccumulator) Report() []SlowPlanRecord {
	a.mu.Lock()
	out := make([]SlowPlanRecord, len(a.records))
	copy(out, a.records)
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].PlanningTimeMicros > out[j].PlanningTimeMicros
	})
	if a.n > 0 && len(out) > a.n {
		out = out[:a.n]
	}
	return out
}
