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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

func TestIndexUsageAccumulator_MarksCollectionScan(t *testing.T) {
	acc := NewIndexUsageAccumulator()
	key := model.IndexUsageKey{
		Namespace:   model.Namespace{Database: "appdb", Collection: "users"},
		PlanSummary: "COLLSCAN",
	}
	acc.Record(key, &model.OperationRecord{
		DurationMillis: 120, HasDuration: true,
		DocsExamined: 1000, HasDocsExamined: true,
		NReturned: 2, HasNReturned: true,
	})

	report, ok := acc.Report(key)
	require.True(t, ok)
	assert.True(t, report.IsCollectionScan)

	summary := acc.Summary()
	assert.Equal(t, int64(1), summary.TotalOperations)
	assert.Equal(t, 1, summary.UniqueUsagePatterns)
	assert.Equal(t, int64(1), summary.CollectionScanTotal)
}

func TestIndexUsageAccumulator_NonScanExcludedFromScanTotal(t *testing.T) {
	acc := NewIndexUsageAccumulator()
	key := model.IndexUsageKey{Namespace: model.Namespace{Collection: "users"}, PlanSummary: "IXSCAN { _id: 1 }"}
	acc.Record(key, &model.OperationRecord{DurationMillis: 5, HasDuration: true})

	summary := acc.Summary()
	assert.Equal(t, int64(0), summary.CollectionScanTotal)
}
