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
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// planCacheEntry specializes operationEntry with planning-time statistics
// (§4.4). The collection-scan count here is computed per-record rather than
// derived from the key's plan-summary, since a single plan-cache key can
// see multiple plan summaries across replans.
type planCacheEntry struct {
	mu sync.Mutex

	count int64

	duration    stat
	durationRes *Reservoir

	planningTime    stat
	planningTimeRes *Reservoir

	collectionScanCount int64
	replanCount         int64

	sample samplePointer
}

func newPlanCacheEntry() *planCacheEntry {
	return &planCacheEntry{
		durationRes:     NewReservoir(),
		planningTimeRes: NewReservoir(),
	}
}

// PlanCacheReport is the read-only snapshot for one plan-cache key.
type PlanCacheReport struct {
	Count                  int64
	DurationMean           float64
	DurationP95            float64
	PlanningTimeMeanMicros float64
	PlanningTimeMeanMillis float64
	PlanningTimeP95Micros  float64
	CollectionScanCount    int64
	ReplanCount            int64
	Sample                 model.SampleHandle
	HasSample              bool
}

// PlanCacheAccumulator maintains one entry per (namespace, plan-cache-key,
// query-hash, plan-summary) key.
type PlanCacheAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.PlanCacheKey, *planCacheEntry]
	samples *model.SampleStore
}

func NewPlanCacheAccumulator(samples *model.SampleStore) *PlanCacheAccumulator {
	return &PlanCacheAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.PlanCacheKey, *planCacheEntry](
			func(k model.PlanCacheKey) uint32 { return uint32(k.Hash()) }),
		samples: samples,
	}
}

func (a *PlanCacheAccumulator) Name() string    { return "plan-cache" }
func (a *PlanCacheAccumulator) EntryCount() int { return a.entries.Count() }

func (a *PlanCacheAccumulator) Record(key model.PlanCacheKey, rec *model.OperationRecord) {
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *planCacheEntry) *planCacheEntry {
		if exists {
			return valueInMap
		}
		return newPlanCacheEntry()
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.count++
	if rec.HasDuration {
		if entry.duration.add(rec.DurationMillis) {
			a.bump()
		}
		entry.durationRes.Add(float64(rec.DurationMillis))
	}
	if rec.HasPlanningTime {
		if entry.planningTime.add(rec.PlanningTimeMicros) {
			a.bump()
		}
		entry.planningTimeRes.Add(float64(rec.PlanningTimeMicros))
	}
	if rec.IsCollectionScan() {
		entry.collectionScanCount++
	}
	if rec.HasReplan {
		entry.replanCount++
	}

	if rec.HasDuration && a.samples != nil && rec.RawSamplePointer.Valid() {
		if evicted, ok := entry.sample.offer(rec.DurationMillis, rec.RawSamplePointer); ok {
			a.samples.Discard(evicted)
		}
	}
}

func (a *PlanCacheAccumulator) Report(key model.PlanCacheKey) (PlanCacheReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return PlanCacheReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	sample, hasSample := entry.sample.get()
	return PlanCacheReport{
		Count:                  entry.count,
		DurationMean:           entry.duration.mean(),
		DurationP95:            entry.durationRes.Percentile(0.95),
		PlanningTimeMeanMicros: entry.planningTime.mean(),
		PlanningTimeMeanMillis: entry.planningTime.mean() / 1000,
		PlanningTimeP95Micros:  entry.planningTimeRes.Percentile(0.95),
		CollectionScanCount:    entry.collectionScanCount,
		ReplanCount:            entry.replanCount,
		Sample:                 sample,
		HasSample:              hasSample,
	}, true
}

func (a *PlanCacheAccumulator) Keys() []model.PlanCacheKey {
	return a.entries.Keys()
}
