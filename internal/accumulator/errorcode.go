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

type errorEntry struct {
	mu            sync.Mutex
	count         int64
	codeNumber    int64
	hasCodeNumber bool
	sampleMessage string
	hasSample     bool
}

// ErrorReport is the read-only snapshot for one error code.
type ErrorReport struct {
	Count         int64
	CodeNumber    int64
	HasCodeNumber bool
	SampleMessage string
	HasSample     bool
}

// ErrorCodeAccumulator maintains a per-code-name counter with one sample
// message (§4.6).
type ErrorCodeAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.ErrorKey, *errorEntry]
}

func NewErrorCodeAccumulator() *ErrorCodeAccumulator {
	return &ErrorCodeAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.ErrorKey, *errorEntry](
			func(k model.ErrorKey) uint32 { return uint32(k.Hash()) }),
	}
}

func (a *ErrorCodeAccumulator) Name() string    { return "error-code" }
func (a *ErrorCodeAccumulator) EntryCount() int { return a.entries.Count() }

// Record increments the entry for codeName, capturing codeNumber and
// message on first observation and backfilling either one later if it was
// previously absent.
func (a *ErrorCodeAccumulator) Record(codeName string, codeNumber int64, hasCodeNumber bool, message string, hasMessage bool) {
	key := model.ErrorKey{CodeName: codeName}
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *errorEntry) *errorEntry {
		if exists {
			return valueInMap
		}
		return &errorEntry{}
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.count++
	if hasCodeNumber && !entry.hasCodeNumber {
		entry.codeNumber = codeNumber
		entry.hasCodeNumber = true
	}
	if hasMessage && !entry.hasSample {
		entry.sampleMessage = message
		entry.hasSample = true
	}
}

func (a *ErrorCodeAccumulator) Report(codeName string) (ErrorReport, bool) {
	entry, ok := a.entries.Get(model.ErrorKey{CodeName: codeName})
	if !ok {
		return ErrorReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return ErrorReport{
		Count:         entry.count,
		CodeNumber:    entry.codeNumber,
		HasCodeNumber: entry.hasCodeNumber,
		SampleMessage: entry.sampleMessage,
		HasSample:     entry.hasSample,
	}, true
}

func (a *ErrorCodeAccumulator) Keys() []model.ErrorKey {
	return a.entries.Keys()
}
