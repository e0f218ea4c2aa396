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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

func TestOperationAccumulator_SimpleSlowFind(t *testing.T) {
	samples := model.NewSampleStore()
	acc := NewOperationAccumulator(samples)

	key := model.OperationKey{
		Namespace: model.Namespace{Database: "appdb", Collection: "users"},
		OpType:    model.OpFind,
	}
	rec := &model.OperationRecord{
		Namespace:       key.Namespace,
		OpType:          model.OpFind,
		DurationMillis:  120,
		HasDuration:     true,
		DocsExamined:    4,
		HasDocsExamined: true,
		NReturned:       1,
		HasNReturned:    true,
		KeysExamined:    4,
		HasKeysExamined: true,
		PlanSummary:     "IXSCAN { _id: 1 }",
	}
	acc.Record(key, rec)

	report, ok := acc.Report(key)
	require.True(t, ok)
	assert.Equal(t, int64(1), report.Count)
	assert.Equal(t, int64(120), report.DurationMin)
	assert.Equal(t, int64(120), report.DurationMax)
	assert.Equal(t, float64(120), report.DurationMean)
	assert.Equal(t, float64(4), report.ScanToReturn)
	assert.Equal(t, int64(0), report.CollectionScanCount)
}

func TestOperationAccumulator_CollectionScan(t *testing.T) {
	acc := NewOperationAccumulator(nil)
	key := model.OperationKey{
		Namespace: model.Namespace{Database: "appdb", Collection: "users"},
		OpType:    model.OpFind,
	}
	rec := &model.OperationRecord{
		DurationMillis:  120,
		HasDuration:     true,
		DocsExamined:    1000,
		HasDocsExamined: true,
		NReturned:       2,
		HasNReturned:    true,
		PlanSummary:     "COLLSCAN",
	}
	acc.Record(key, rec)

	report, ok := acc.Report(key)
	require.True(t, ok)
	assert.Equal(t, float64(500), report.ScanToReturn)
	assert.Equal(t, int64(1), report.CollectionScanCount)
}

func TestOperationAccumulator_TTLDeletion(t *testing.T) {
	acc := NewOperationAccumulator(nil)
	key := model.OperationKey{
		Namespace: model.Namespace{Collection: "site.events"},
		OpType:    model.OpTTLDelete,
	}
	rec := &model.OperationRecord{
		DurationMillis: 952,
		HasDuration:    true,
		NReturned:      325,
		HasNReturned:   true,
	}
	acc.Record(key, rec)

	report, ok := acc.Report(key)
	require.True(t, ok)
	assert.Equal(t, int64(1), report.Count)
	assert.Equal(t, float64(952), report.DurationMean)
}

func TestOperationAccumulator_EqualKeysDistinctOpTypesNeverCoalesce(t *testing.T) {
	acc := NewOperationAccumulator(nil)
	ns := model.Namespace{Database: "appdb", Collection: "users"}
	findKey := model.OperationKey{Namespace: ns, OpType: model.OpFind}
	insertKey := model.OperationKey{Namespace: ns, OpType: model.OpInsert}

	acc.Record(findKey, &model.OperationRecord{DurationMillis: 10, HasDuration: true})
	acc.Record(insertKey, &model.OperationRecord{DurationMillis: 20, HasDuration: true})

	findReport, ok := acc.Report(findKey)
	require.True(t, ok)
	insertReport, ok := acc.Report(insertKey)
	require.True(t, ok)

	assert.Equal(t, int64(1), findReport.Count)
	assert.Equal(t, int64(1), insertReport.Count)
	assert.NotEqual(t, findReport.DurationMean, insertReport.DurationMean)
}

func TestOperationAccumulator_ConcurrentRecordsAreOrderInvariant(t *testing.T) {
	acc := NewOperationAccumulator(nil)
	key := model.OperationKey{Namespace: model.Namespace{Collection: "c"}, OpType: model.OpFind}

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			acc.Record(key, &model.OperationRecord{DurationMillis: d, HasDuration: true})
		}(int64(i))
	}
	wg.Wait()

	report, ok := acc.Report(key)
	require.True(t, ok)
	assert.Equal(t, int64(100), report.Count)
	assert.Equal(t, int64(1), report.DurationMin)
	assert.Equal(t, int64(100), report.DurationMax)
	assert.Equal(t, float64(50.5), report.DurationMean)
}

func TestOperationAccumulator_SamplePointerKeepsWorstCase(t *testing.T) {
	samples := model.NewSampleStore()
	acc := NewOperationAccumulator(samples)
	key := model.OperationKey{Namespace: model.Namespace{Collection: "c"}, OpType: model.OpFind}

	h1 := samples.Put("slow line")
	h2 := samples.Put("slower line")

	acc.Record(key, &model.OperationRecord{DurationMillis: 50, HasDuration: true, RawSamplePointer: h1})
	acc.Record(key, &model.OperationRecord{DurationMillis: 200, HasDuration: true, RawSamplePointer: h2})

	report, ok := acc.Report(key)
	require.True(t, ok)
	require.True(t, report.HasSample)
	line, ok := samples.Get(report.Sample)
	require.True(t, ok)
	assert.Equal(t, "slower line", line)

	_, ok = samples.Get(h1)
	assert.False(t, ok, "the displaced sample should have been discarded")
}
