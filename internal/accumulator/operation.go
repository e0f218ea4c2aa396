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

// operationEntry is the per-(namespace, op-type) aggregate (§4.3).
type operationEntry struct {
	mu sync.Mutex

	count int64

	duration     stat
	durationRes  *Reservoir
	keysExamined stat
	keysRes      *Reservoir
	docsExamined stat
	docsRes      *Reservoir

	nReturnedTotal      int64
	resultLenTotal      int64
	bytesReadTotal      int64
	bytesWrittenTotal   int64
	writeConflictsTotal int64
	nShardsTotal        int64

	collectionScanCount int64
	replanCount         int64

	// cursorExhaustedCount is supplemental (SPEC_FULL §4.2); it backs the
	// additive exhausted-fraction derived stat and never participates in
	// any invariant spec.md fixes.
	cursorExhaustedCount int64

	sample samplePointer
}

func newOperationEntry() *operationEntry {
	return &operationEntry{
		durationRes: NewReservoir(),
		keysRes:     NewReservoir(),
		docsRes:     NewReservoir(),
	}
}

// OperationReport is the read-only snapshot handed to report/export callers.
type OperationReport struct {
	Count               int64
	DurationMean        float64
	DurationMin         int64
	DurationMax         int64
	DurationP95         float64
	ScanToReturn        float64
	CollectionScanCount int64
	ReplanCount         int64
	ExhaustedFraction   float64
	Sample              model.SampleHandle
	HasSample           bool
}

// OperationAccumulator maintains one entry per (namespace, op-type) key.
type OperationAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.OperationKey, *operationEntry]
	samples *model.SampleStore
}

// NewOperationAccumulator creates an empty accumulator. samples, if non-nil,
// is used to resolve and retain the worst-case exemplar per entry (§9).
func NewOperationAccumulator(samples *model.SampleStore) *OperationAccumulator {
	return &OperationAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.OperationKey, *operationEntry](shardOperationKey),
		samples: samples,
	}
}

func shardOperationKey(k model.OperationKey) uint32 {
	return uint32(k.Hash())
}

func (a *OperationAccumulator) Name() string { return "operation" }

func (a *OperationAccumulator) EntryCount() int { return a.entries.Count() }

// Record folds rec into the entry for key, creating it on first observation.
// A single Upsert call locates-or-creates the entry (§4.3 "single-lookup
// insert-or-update"); the entry's own mutex then serializes the field
// updates against any other worker racing on the same key.
func (a *OperationAccumulator) Record(key model.OperationKey, rec *model.OperationRecord) {
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *operationEntry) *operationEntry {
		if exists {
			return valueInMap
		}
		return newOperationEntry()
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
	if rec.HasKeysExamined {
		if entry.keysExamined.add(rec.KeysExamined) {
			a.bump()
		}
		entry.keysRes.Add(float64(rec.KeysExamined))
	}
	if rec.HasDocsExamined {
		if entry.docsExamined.add(rec.DocsExamined) {
			a.bump()
		}
		entry.docsRes.Add(float64(rec.DocsExamined))
	}
	if rec.HasNReturned {
		sum, ok := saturatingAdd(entry.nReturnedTotal, rec.NReturned)
		entry.nReturnedTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.HasResultLen {
		sum, ok := saturatingAdd(entry.resultLenTotal, rec.ResultLenBytes)
		entry.resultLenTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.HasBytesRead {
		sum, ok := saturatingAdd(entry.bytesReadTotal, rec.BytesRead)
		entry.bytesReadTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.HasBytesWritten {
		sum, ok := saturatingAdd(entry.bytesWrittenTotal, rec.BytesWritten)
		entry.bytesWrittenTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.HasWriteConflicts {
		sum, ok := saturatingAdd(entry.writeConflictsTotal, rec.WriteConflicts)
		entry.writeConflictsTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.HasNShards {
		sum, ok := saturatingAdd(entry.nShardsTotal, rec.NShards)
		entry.nShardsTotal = sum
		if !ok {
			a.bump()
		}
	}
	if rec.IsCollectionScan() {
		entry.collectionScanCount++
	}
	if rec.HasReplan {
		entry.replanCount++
	}
	if rec.CursorExhausted {
		entry.cursorExhaustedCount++
	}

	if rec.HasDuration && a.samples != nil && rec.RawSamplePointer.Valid() {
		if evicted, ok := entry.sample.offer(rec.DurationMillis, rec.RawSamplePointer); ok {
			a.samples.Discard(evicted)
		}
	}
}

// Report returns a snapshot for key, or false if the key has never been
// observed. Only safe to call after all workers have drained (§5).
func (a *OperationAccumulator) Report(key model.OperationKey) (OperationReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return OperationReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	var scanToReturn float64
	if entry.nReturnedTotal > 0 {
		scanToReturn = float64(entry.docsExamined.sum) / float64(entry.nReturnedTotal)
	}
	var exhausted float64
	if entry.count > 0 {
		exhausted = float64(entry.cursorExhaustedCount) / float64(entry.count)
	}
	sample, hasSample := entry.sample.get()

	return OperationReport{
		Count:               entry.count,
		DurationMean:        entry.duration.mean(),
		DurationMin:         entry.duration.min,
		DurationMax:         entry.duration.max,
		DurationP95:         entry.durationRes.Percentile(0.95),
		ScanToReturn:        scanToReturn,
		CollectionScanCount: entry.collectionScanCount,
		ReplanCount:         entry.replanCount,
		ExhaustedFraction:   exhausted,
		Sample:              sample,
		HasSample:           hasSample,
	}, true
}

// Keys returns every key currently held, for iteration by report/export
// callers.
func (a *OperationAccumulator) Keys() []model.OperationKey {
	return a.entries.Keys()
}
