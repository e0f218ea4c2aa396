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
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

type indexUsageEntry struct {
	mu sync.Mutex

	count int64

	duration stat

	keysExaminedTotal int64
	docsExaminedTotal int64
	returnedTotal     int64

	// cursorExhaustedCount backs the additive exhausted-fraction stat
	// (SPEC_FULL §4.2).
	cursorExhaustedCount int64
}

// IndexUsageReport is the read-only snapshot for one (namespace,
// plan-summary) key.
type IndexUsageReport struct {
	Count             int64
	DurationMean      float64
	DurationMin       int64
	DurationMax       int64
	KeysExaminedTotal int64
	DocsExaminedTotal int64
	ReturnedTotal     int64
	IsCollectionScan  bool
	ExhaustedFraction float64
}

// IndexUsageAccumulatorSummary is the run-wide rollup §4.8 describes:
// total operations, unique usage patterns, and collection-scan total.
type IndexUsageAccumulatorSummary struct {
	TotalOperations     int64
	UniqueUsagePatterns int
	CollectionScanTotal int64
}

// IndexUsageAccumulator maintains one entry per (namespace, plan-summary)
// key (§4.8).
type IndexUsageAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.IndexUsageKey, *indexUsageEntry]
}

func NewIndexUsageAccumulator() *IndexUsageAccumulator {
	return &IndexUsageAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.IndexUsageKey, *indexUsageEntry](
			func(k model.IndexUsageKey) uint32 { return uint32(k.Hash()) }),
	}
}

func (a *IndexUsageAccumulator) Name() string    { return "index-usage" }
func (a *IndexUsageAccumulator) EntryCount() int { return a.entries.Count() }

func (a *IndexUsageAccumulator) Record(key model.IndexUsageKey, rec *model.OperationRecord) {
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *indexUsageEntry) *indexUsageEntry {
		if exists {
			return valueInMap
		}
		return &indexUsageEntry{}
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.count++
	if rec.HasDuration {
		if entry.duration.add(rec.DurationMillis) {
			a.bump()
		}
	}
	if rec.HasKeysExamined {
		entry.keysExaminedTotal += rec.KeysExamined
	}
	if rec.HasDocsExamined {
		entry.docsExaminedTotal += rec.DocsExamined
	}
	if rec.HasNReturned {
		entry.returnedTotal += rec.NReturned
	}
	if rec.CursorExhausted {
		entry.cursorExhaustedCount++
	}
}

func (a *IndexUsageAccumulator) Report(key model.IndexUsageKey) (IndexUsageReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return IndexUsageReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	var exhausted float64
	if entry.count > 0 {
		exhausted = float64(entry.cursorExhaustedCount) / float64(entry.count)
	}
	return IndexUsageReport{
		Count:             entry.count,
		DurationMean:      entry.duration.mean(),
		DurationMin:       entry.duration.min,
		DurationMax:       entry.duration.max,
		KeysExaminedTotal: entry.keysExaminedTotal,
		DocsExaminedTotal: entry.docsExaminedTotal,
		ReturnedTotal:     entry.returnedTotal,
		IsCollectionScan:  isCollectionScanSummary(key.PlanSummary),
		ExhaustedFraction: exhausted,
	}, true
}

// Summary computes the run-wide rollup across every entry.
func (a *IndexUsageAccumulator) Summary() IndexUsageAccumulatorSummary {
	var s IndexUsageAccumulatorSummary
	for tuple := range a.entries.IterBuffered() {
		tuple.Val.mu.Lock()
		c := tuple.Val.count
		tuple.Val.mu.Unlock()
		s.TotalOperations += c
		s.UniqueUsagePatterns++
		if isCollectionScanSummary(tuple.Key.PlanSummary) {
			s.CollectionScanTotal += c
		}
	}
	return s
}

func (a *IndexUsageAccumulator) Keys() []model.IndexUsageKey {
	return a.entries.Keys()
}

func isCollectionScanSummary(planSummary string) bool {
	return strings.Contains(planSummary, "COLLSCAN")
}
