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

package model

import "strings"

// OperationRecord is the normalized, per-line value every accumulator
// consumes. All numeric fields are optional; a zero value and "absent" are
// distinguished by the paired Has* boolean, matching the teacher's own
// convention of never conflating "0" with "not present" in an aggregate.
type OperationRecord struct {
	Namespace Namespace
	OpType    OpType

	DurationMillis    int64
	HasDuration       bool
	KeysExamined      int64
	HasKeysExamined   bool
	DocsExamined      int64
	HasDocsExamined   bool
	NReturned         int64
	HasNReturned      bool
	ResultLenBytes    int64
	HasResultLen      bool
	BytesRead         int64
	HasBytesRead      bool
	BytesWritten      int64
	HasBytesWritten   bool
	WriteConflicts    int64
	HasWriteConflicts bool
	NShards           int64
	HasNShards        bool

	PlanningTimeMicros int64
	HasPlanningTime    bool

	PlanSummary    string
	PlanCacheKey   string
	QueryHash      string
	SanitizedFilter string
	AppName        string

	HasReplan    bool
	ReplanReason string

	TxnRetryCounter        int64
	HasTxnRetryCounter     bool
	TxnTerminationCause    string
	TxnCommitType          string
	TxnCommitDurationMicros int64
	HasTxnCommitDuration   bool
	TxnActiveMicros        int64
	HasTxnActiveMicros     bool
	TxnInactiveMicros      int64
	HasTxnInactiveMicros   bool

	ErrorCodeName   string
	ErrorCodeNumber int64
	HasErrorCode    bool
	ErrorMessage    string

	// RawSamplePointer is an opaque handle (see model.SampleHandle) to the
	// raw line this record was extracted from. Accumulators retain at most
	// one per entry; nothing downstream ever sees the full line itself.
	RawSamplePointer SampleHandle

	// Supplemental fields (SPEC_FULL §4.2): additive, no accumulator is
	// required to read them.
	LockAcquireCount    int64
	HasLockAcquireCount bool
	CursorExhausted     bool
}

// IsCollectionScan reports whether the record's plan summary names a
// collection scan, the single predicate every accumulator that tracks
// collection-scan counts relies on.
func (r *OperationRecord) IsCollectionScan() bool {
	return strings.Contains(r.PlanSummary, "COLLSCAN")
}
