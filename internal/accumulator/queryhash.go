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
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

type queryHashEntry struct {
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

func newQueryHashEntry() *queryHashEntry {
	return &queryHashEntry{
		durationRes:     NewReservoir(),
		planningTimeRes: NewReservoir(),
	}
}

// QueryHashReport is the read-only snapshot for one query-hash key.
type QueryHashReport struct {
	Count                  int64
	DurationMean           float64
	DurationP95            float64
	PlanningTimeMeanMicros float64
	CollectionScanCount    int64
	ReplanCount            int64
	Sample                 model.SampleHandle
	HasSample              bool
}

// QueryHashAccumulator maintains one entry per (namespace, op-type,
// query-hash, plan-summary) key, plus a top-N slowest-planning stream
// (§4.7) fed from every record carrying a planning time.
type QueryHashAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.QueryHashKey, *queryHashEntry]
	samples *model.SampleStore
	slow    *SlowPlanningAccumulator
}

// NewQueryHashAccumulator creates an accumulator whose slow-planning stream
// reports up to slowN records.
func NewQueryHashAccumulator(samples *model.SampleStore, slowN int) *QueryHashAccumulator {
	return &QueryHashAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.QueryHashKey, *queryHashEntry](
			func(k model.QueryHashKey) uint32 { return uint32(k.Hash()) }),
		samples: samples,
		slow:    NewSlowPlanningAccumulator(slowN),
	}
}

func (a *QueryHashAccumulator) Name() string    { return "query-hash" }
func (a *QueryHashAccumulator) EntryCount() int { return a.entries.Count() }

func (a *QueryHashAccumulator) Record(key model.QueryHashKey, rec *model.OperationRecord, observedAt time.Time) {
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *queryHashEntry) *queryHashEntry {
		if exists {
			return valueInMap
		}
		return newQueryHashEntry()
	})

	entry.mu.Lock()
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
	entry.count++

	if rec.HasDuration && a.samples != nil && rec.RawSamplePointer.Valid() {
		if evicted, ok := entry.sample.offer(rec.DurationMillis, rec.RawSamplePointer); ok {
			a.samples.Discard(evicted)
		}
	}
	entry.mu.Unlock()

	if rec.HasPlanningTime {
		a.slow.Record(SlowPlanRecord{
			Namespace:          key.Namespace,
			OpType:             key.OpType,
			PlanSummary:        key.PlanSummary,
			SanitizedFilter:    rec.SanitizedFilter,
			QueryHash:          key.QueryHash,
			AppName:            rec.AppName,
			PlanningTimeMicros: rec.PlanningTimeMicros,
			Timestamp:          observedAt,
		})
	}
}

func (a *QueryHashAccumulator) Report(key model.QueryHashKey) (QueryHashReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return QueryHashReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	sample, hasSample := entry.sample.get()
	return QueryHashReport{
		Count:                  entry.count,
		DurationMean:           entry.duration.mean(),
		DurationP95:            entry.durationRes.Percentile(0.95),
		PlanningTimeMeanMicros: entry.planningTime.mean(),
		CollectionScanCount:    entry.collectionScanCount,
		ReplanCount:            entry.replanCount,
		Sample:                 sample,
		HasSample:              hasSample,
	}, true
}

func (a *QueryHashAccumulator) Keys() []model.QueryHashKey {
	return a.entries.Keys()
}

// SlowPlans returns the top-N slowest-planning records observed so far.
func (a *QueryHashAccumulator) SlowPlans() []SlowPlanRecord {
	return a.slow.Report()
}
