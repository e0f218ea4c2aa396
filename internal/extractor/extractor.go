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

// Package extractor implements the Field Extractor (§4.2): it parses one
// admitted line as a nested key/value document and emits at most one
// normalized OperationRecord, plus zero or one connection event. It never
// blocks on I/O and never panics on malformed input — every failure mode
// is a typed Result with a reason, counted by the caller, never aborting
// the pipeline.
package extractor

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// ConnEventKind classifies a connection event forwarded to the connection
// join (§4.9).
type ConnEventKind int

const (
	ConnMetadata ConnEventKind = iota
	ConnAuth
	ConnStart
	ConnEnd
)

// ConnEvent is the intermediate value the extractor emits instead of (or
// alongside) an OperationRecord, for the connection-join's parallel path.
type ConnEvent struct {
	Kind ConnEventKind
	ID   int64

	// Auth
	Username      string
	SampleMessage string
	HasSample     bool

	// Metadata
	DriverName    string
	DriverVersion string
	CompressorSet string
	OSType        string
	OSName        string
	Platform      string
	ServerVersion string
	RemoteHost    string

	Timestamp time.Time
}

// Reason classifies why extraction produced no record, for the §4.10
// diagnostic counters.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonParseError
	ReasonNoAttr
	ReasonNoCommand
	ReasonNoNamespace
	ReasonOK
)

// Result is the Field Extractor's output for one line.
type Result struct {
	Record    *model.OperationRecord
	ConnEvent *ConnEvent
	Reason    Reason
}

// Extractor holds no mutable state; it is safe for concurrent use by every
// worker in the bounded pool (§5).
type Extractor struct {
	samples *model.SampleStore
}

// New creates an Extractor. samples, if non-nil, is used to retain a
// handle to the raw line on every emitted record (§9's "rendering callers
// receive a handle, not the full line").
func New(samples *model.SampleStore) *Extractor {
	return &Extractor{samples: samples}
}

// knownVerbs is checked in a fixed order so that a document carrying more
// than one recognized key (never expected, but not impossible in hand-
// edited fixtures) resolves deterministically.
var knownVerbs = []string{
	"find", "aggregate", "getMore", "insert", "update",
	"delete", "remove", "findAndModify", "distinct", "count",
}

// Extract parses line per §4.2's mandatory path and field policy.
func (e *Extractor) Extract(line []byte) Result {
	if !gjson.ValidBytes(line) {
		return Result{Reason: ReasonParseError}
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return Result{Reason: ReasonParseError}
	}

	component := root.Get("c").String()
	msg := root.Get("msg").String()
	ctx := root.Get("ctx").String()
	ts := parseTimestamp(root.Get("t"))

	if ev, ok := e.connectionEvent(component, msg, ctx, root, ts); ok {
		return Result{ConnEvent: ev, Reason: ReasonOK}
	}

	attr := root.Get("attr")
	if !attr.Exists() || !attr.IsObject() {
		return Result{Reason: ReasonNoAttr}
	}

	// (c) TTL deletion marker.
	if component == "INDEX" && strings.Contains(msg, "Deleted expired documents") {
		rec := &model.OperationRecord{OpType: model.OpTTLDelete}
		rec.Namespace = model.SplitNamespace(attr.Get("namespace").String())
		if n, ok := model.DecodeInt64(attr.Get("durationMillis")); ok {
			rec.DurationMillis = n
			rec.HasDuration = true
		}
		if n, ok := model.DecodeInt64(attr.Get("numDeleted")); ok {
			rec.NReturned = n
			rec.HasNReturned = true
		}
		e.populateCommon(rec, attr, line)
		return Result{Record: rec, Reason: ReasonOK}
	}

	// (a) command sub-object naming a recognized verb.
	if cmd := attr.Get("command"); cmd.Exists() && cmd.IsObject() {
		if rec, ok := e.fromCommand(attr, cmd); ok {
			e.populateCommon(rec, attr, line)
			return Result{Record: rec, Reason: ReasonOK}
		}
		return Result{Reason: ReasonNoCommand}
	}

	// (b) write-type token at the attribute level.
	if wt := attr.Get("type"); wt.Exists() {
		if rec, ok := e.fromWriteType(attr, wt.String()); ok {
			e.populateCommon(rec, attr, line)
			return Result{Record: rec, Reason: ReasonOK}
		}
	}

	// Transaction-telemetry records carry no command verb at all but do
	// carry a termination cause; supplemental to the mandatory path above,
	// grounded on spec.md §4.5's transaction accumulator contract.
	if cause := attr.Get("terminationCause"); cause.Exists() {
		rec := e.fromTransaction(attr, cause.String())
		e.populateCommon(rec, attr, line)
		return Result{Record: rec, Reason: ReasonOK}
	}

	// Error records: an operation that failed carries codeName but no
	// recognized verb object in many log lines; still worth an error-code
	// accumulator hit even with no OperationRecord proper.
	if codeName := attr.Get("codeName"); codeName.Exists() {
		rec := &model.OperationRecord{OpType: model.OpCommandOther}
		rec.ErrorCodeName = codeName.String()
		if n, ok := model.DecodeInt64(attr.Get("code")); ok {
			rec.ErrorCodeNumber = n
			rec.HasErrorCode = true
		}
		rec.ErrorMessage = attr.Get("errmsg").String()
		e.populateCommon(rec, attr, line)
		return Result{Record: rec, Reason: ReasonOK}
	}

	return Result{Reason: ReasonNoCommand}
}

func (e *Extractor) fromCommand(attr, cmd gjson.Result) (*model.OperationRecord, bool) {
	for _, verb := range knownVerbs {
		v := cmd.Get(verb)
		if !v.Exists() {
			continue
		}
		rec := &model.OperationRecord{}
		switch verb {
		case "find":
			rec.OpType = model.OpFind
			rec.Namespace = model.SplitNamespace(attr.Get("ns").String())
		case "aggregate":
			rec.OpType = model.OpAggregate
			rec.Namespace = model.SplitNamespace(attr.Get("ns").String())
		case "getMore":
			rec.OpType = model.OpGetMore
			rec.Namespace = namespaceFromCommandField(attr, cmd, "collection")
		case "insert":
			rec.OpType = model.OpInsert
			rec.Namespace = namespaceFromVerbValue(attr, v)
		case "update":
			rec.OpType = model.OpUpdateCmd
			rec.Namespace = namespaceFromVerbValue(attr, v)
		case "delete", "remove":
			rec.OpType = model.OpRemove
			rec.Namespace = namespaceFromCommandField(attr, cmd, "delete")
		case "findAndModify":
			rec.OpType = model.OpFindAndModify
			rec.Namespace = namespaceFromVerbValue(attr, v)
		case "distinct":
			rec.OpType = model.OpDistinct
			rec.Namespace = model.SplitNamespace(attr.Get("ns").String())
		case "count":
			rec.OpType = model.OpCount
			rec.Namespace = model.SplitNamespace(attr.Get("ns").String())
		default:
			continue
		}
		return rec, true
	}
	return nil, false
}

// namespaceFromVerbValue resolves a namespace when the command verb's own
// value names the collection (insert/update/findAndModify). A non-empty
// attr.ns is used as the whole namespace; otherwise the verb value becomes
// the collection with no database.
func namespaceFromVerbValue(attr, verbValue gjson.Result) model.Namespace {
	ns := model.SplitNamespace(attr.Get("ns").String())
	if !ns.IsZero() {
		return ns
	}
	if verbValue.Type == gjson.String {
		return model.Namespace{Collection: verbValue.String()}
	}
	return model.Namespace{}
}

func namespaceFromCommandField(attr, cmd gjson.Result, field string) model.Namespace {
	ns := model.SplitNamespace(attr.Get("ns").String())
	if !ns.IsZero() {
		return ns
	}
	if coll := cmd.Get(field); coll.Exists() && coll.Type == gjson.String {
		return model.Namespace{Collection: coll.String()}
	}
	return model.Namespace{}
}

func (e *Extractor) fromWriteType(attr gjson.Result, writeType string) (*model.OperationRecord, bool) {
	rec := &model.OperationRecord{}
	switch writeType {
	case "update":
		rec.OpType = model.OpUpdateWrite
	case "insert":
		rec.OpType = model.OpInsert
	case "remove":
		rec.OpType = model.OpRemove
	default:
		return nil, false
	}
	rec.Namespace = model.SplitNamespace(attr.Get("ns").String())
	return rec, true
}

func (e *Extractor) fromTransaction(attr gjson.Result, terminationCause string) *model.OperationRecord {
	rec := &model.OperationRecord{OpType: model.OpCommandOther}
	rec.TxnTerminationCause = terminationCause
	rec.TxnCommitType = attr.Get("commitType").String()
	if n, ok := model.DecodeInt64(attr.Get("txnRetryCounter")); ok {
		rec.TxnRetryCounter = n
		rec.HasTxnRetryCounter = true
	}
	if n, ok := model.DecodeInt64(attr.Get("commitDurationMicros")); ok {
		rec.TxnCommitDurationMicros = n
		rec.HasTxnCommitDuration = true
	}
	if n, ok := model.DecodeInt64(attr.Get("timeActiveMicros")); ok {
		rec.TxnActiveMicros = n
		rec.HasTxnActiveMicros = true
	}
	if n, ok := model.DecodeInt64(attr.Get("timeInactiveMicros")); ok {
		rec.TxnInactiveMicros = n
		rec.HasTxnInactiveMicros = true
	}
	return rec
}

// populateCommon fills in the numeric and string fields common to every
// record shape, including the dual-location storage.bytesRead /
// storage.data.bytesRead fallback (§4.2), and retains a sample handle.
func (e *Extractor) populateCommon(rec *model.OperationRecord, attr gjson.Result, line []byte) {
	if n, ok := model.DecodeInt64(attr.Get("durationMillis")); ok && !rec.HasDuration {
		rec.DurationMillis = n
		rec.HasDuration = true
	}
	if n, ok := model.DecodeInt64(attr.Get("keysExamined")); ok {
		rec.KeysExamined = n
		rec.HasKeysExamined = true
	}
	if n, ok := model.DecodeInt64(attr.Get("docsExamined")); ok {
		rec.DocsExamined = n
		rec.HasDocsExamined = true
	}
	if n, ok := model.DecodeInt64(attr.Get("nreturned")); ok {
		rec.NReturned = n
		rec.HasNReturned = true
	}
	if n, ok := model.DecodeInt64(attr.Get("reslen")); ok {
		rec.ResultLenBytes = n
		rec.HasResultLen = true
	}
	if v := model.FirstPresent(attr, "storage.bytesRead", "storage.data.bytesRead"); v.Exists() {
		if n, ok := model.DecodeInt64(v); ok {
			rec.BytesRead = n
			rec.HasBytesRead = true
		}
	}
	if v := model.FirstPresent(attr, "storage.bytesWritten", "storage.data.bytesWritten"); v.Exists() {
		if n, ok := model.DecodeInt64(v); ok {
			rec.BytesWritten = n
			rec.HasBytesWritten = true
		}
	}
	if n, ok := model.DecodeInt64(attr.Get("writeConflicts")); ok {
		rec.WriteConflicts = n
		rec.HasWriteConflicts = true
	}
	if n, ok := model.DecodeInt64(attr.Get("nShards")); ok {
		rec.NShards = n
		rec.HasNShards = true
	}
	if n, ok := model.DecodeInt64(attr.Get("planningTimeMicros")); ok {
		rec.PlanningTimeMicros = n
		rec.HasPlanningTime = true
	}
	rec.PlanSummary = attr.Get("planSummary").String()
	rec.PlanCacheKey = attr.Get("planCacheShapeHash").String()
	rec.QueryHash = attr.Get("queryHash").String()
	rec.SanitizedFilter = attr.Get("command.filter").Raw
	rec.AppName = attr.Get("appName").String()
	if rec.AppName == "" {
		rec.AppName = attr.Get("command.$client.application.name").String()
	}

	if replanned := attr.Get("replanned"); replanned.Exists() {
		rec.HasReplan = replanned.Bool()
		rec.ReplanReason = attr.Get("replanReason").String()
	}

	if n, ok := model.DecodeInt64(attr.Get("locks.acquireCount")); ok {
		rec.LockAcquireCount = n
		rec.HasLockAcquireCount = true
	}
	if exhausted := attr.Get("cursorExhausted"); exhausted.Exists() {
		rec.CursorExhausted = exhausted.Bool()
	}

	if e.samples != nil {
		rec.RawSamplePointer = e.samples.Put(string(line))
	}
}

// connectionEvent classifies an admitted line as a connection-join event,
// per §4.2's three connection-event shapes. Returns ok=false when the line
// is not a connection event at all.
func (e *Extractor) connectionEvent(component, msg, ctx string, root gjson.Result, ts time.Time) (*ConnEvent, bool) {
	connID, hasID := connIDFromCtx(ctx)

	switch {
	case component == "NETWORK" && strings.Contains(msg, "client metadata"):
		if !hasID {
			return nil, false
		}
		attr := root.Get("attr")
		meta := attr.Get("doc")
		return &ConnEvent{
			Kind:          ConnMetadata,
			ID:            connID,
			DriverName:    meta.Get("driver.name").String(),
			DriverVersion: meta.Get("driver.version").String(),
			CompressorSet: joinCompressors(attr.Get("compressors")),
			OSType:        meta.Get("os.type").String(),
			OSName:        meta.Get("os.name").String(),
			Platform:      meta.Get("platform").String(),
			ServerVersion: meta.Get("application.version").String(),
			RemoteHost:    attr.Get("remote").String(),
			Timestamp:     ts,
		}, true
	case component == "ACCESS" && strings.Contains(msg, "Successfully authenticated"):
		if !hasID {
			return nil, false
		}
		attr := root.Get("attr")
		return &ConnEvent{
			Kind:          ConnAuth,
			ID:            connID,
			Username:      attr.Get("user").String(),
			SampleMessage: msg,
			HasSample:     true,
			Timestamp:     ts,
		}, true
	case component == "NETWORK" && strings.Contains(msg, "Connection accepted"):
		if !hasID {
			return nil, false
		}
		return &ConnEvent{Kind: ConnStart, ID: connID, Timestamp: ts}, true
	case component == "NETWORK" && (strings.Contains(msg, "Connection ended") || strings.Contains(msg, "end connection")):
		if !hasID {
			return nil, false
		}
		return &ConnEvent{Kind: ConnEnd, ID: connID, Timestamp: ts}, true
	default:
		return nil, false
	}
}

// connIDFromCtx extracts the trailing integer from a "connNN"-shaped ctx
// field, the conventional connection-id carrier in server log context
// tags.
func connIDFromCtx(ctx string) (int64, bool) {
	i := len(ctx)
	for i > 0 && ctx[i-1] >= '0' && ctx[i-1] <= '9' {
		i--
	}
	if i == len(ctx) {
		return 0, false
	}
	n, err := strconv.ParseInt(ctx[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func joinCompressors(v gjson.Result) string {
	if !v.Exists() || !v.IsArray() {
		return ""
	}
	var parts []string
	v.ForEach(func(_, value gjson.Result) bool {
		parts = append(parts, value.String())
		return true
	})
	return strings.Join(parts, ",")
}

func parseTimestamp(t gjson.Result) time.Time {
	date := t.Get("$date").String()
	if date == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return time.Time{}
	}
	return ts
}
