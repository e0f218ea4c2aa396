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

type transactionEntry struct {
	mu sync.Mutex

	count int64

	duration       stat
	commitDuration stat
	active         stat
	inactive       stat
}

func newTransactionEntry() *transactionEntry {
	return &transactionEntry{}
}

// TransactionReport is the read-only snapshot for one transaction key.
type TransactionReport struct {
	Count              int64
	DurationMean       float64
	CommitDurationMean float64
	ActiveMean         float64
	InactiveMean       float64
}

// BreakdownEntry is one row of the termination-cause breakdown report.
type BreakdownEntry struct {
	Cause      string
	Count      int64
	Percentage float64
}

// HavingFilter is an optional read-time predicate over a breakdown row,
// evaluated after accumulation (§4.5 [ADD]); it never affects accumulation
// itself. A nil filter keeps every row.
type HavingFilter func(row BreakdownEntry) bool

// TransactionAccumulator maintains one entry per (retry-counter,
// termination-cause, commit-type) key.
type TransactionAccumulator struct {
	overflowCounter
	entries cmap.ConcurrentMap[model.TransactionKey, *transactionEntry]
}

func NewTransactionAccumulator() *TransactionAccumulator {
	return &TransactionAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.TransactionKey, *transactionEntry](
			func(k model.TransactionKey) uint32 { return uint32(k.Hash()) }),
	}
}

func (a *TransactionAccumulator) Name() string    { return "transaction" }
func (a *TransactionAccumulator) EntryCount() int { return a.entries.Count() }

func (a *TransactionAccumulator) Record(key model.TransactionKey, rec *model.OperationRecord) {
	entry := a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *transactionEntry) *transactionEntry {
		if exists {
			return valueInMap
		}
		return newTransactionEntry()
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.count++
	if rec.HasDuration {
		if entry.duration.add(rec.DurationMillis) {
			a.bump()
		}
	}
	if rec.HasTxnCommitDuration {
		if entry.commitDuration.add(rec.TxnCommitDurationMicros) {
			a.bump()
		}
	}
	if rec.HasTxnActiveMicros {
		if entry.active.add(rec.TxnActiveMicros) {
			a.bump()
		}
	}
	if rec.HasTxnInactiveMicros {
		if entry.inactive.add(rec.TxnInactiveMicros) {
			a.bump()
		}
	}
}

func (a *TransactionAccumulator) Report(key model.TransactionKey) (TransactionReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return TransactionReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return TransactionReport{
		Count:              entry.count,
		DurationMean:       entry.duration.mean(),
		CommitDurationMean: entry.commitDuration.mean(),
		ActiveMean:         entry.active.mean(),
		InactiveMean:       entry.inactive.mean(),
	}, true
}

// Breakdown groups every entry's count by termination-cause and reports
// each cause's share of the total. filter, if non-nil, drops rows it
// returns false for after percentages are computed (§4.5 [ADD]).
func (a *TransactionAccumulator) Breakdown(filter HavingFilter) []BreakdownEntry {
	counts := make(map[string]int64)
	var total int64
	for tuple := range a.entries.IterBuffered() {
		tuple.Val.mu.Lock()
		c := tuple.Val.count
		tuple.Val.mu.Unlock()
		counts[tuple.Key.TerminationCause] += c
		total += c
	}

	rows := make([]BreakdownEntry, 0, len(counts))
	for cause, c := range counts {
		row := BreakdownEntry{Cause: cause, Count: c}
		if total > 0 {
			row.Percentage = 100 * float64(c) / float64(total)
		}
		if filter == nil || filter(row) {
			rows = append(rows, row)
		}
	}
	return rows
}
