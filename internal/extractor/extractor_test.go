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

package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

func TestExtract_SimpleSlowFind(t *testing.T) {
	e := New(model.NewSampleStore())
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"ns":"appdb.users","command":{"find":"users"},"durationMillis":120,"docsExamined":4,"nreturned":1,"keysExamined":4,"planSummary":"IXSCAN { _id: 1 }"}}`)

	res := e.Extract(line)
	require.NotNil(t, res.Record)
	rec := res.Record
	assert.Equal(t, model.OpFind, rec.OpType)
	assert.Equal(t, "appdb", rec.Namespace.Database)
	assert.Equal(t, "users", rec.Namespace.Collection)
	assert.Equal(t, int64(120), rec.DurationMillis)
	assert.Equal(t, int64(4), rec.DocsExamined)
	assert.Equal(t, int64(1), rec.NReturned)
	assert.False(t, rec.IsCollectionScan())
}

func TestExtract_CollectionScan(t *testing.T) {
	e := New(nil)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"ns":"appdb.users","command":{"find":"users"},"durationMillis":120,"docsExamined":1000,"nreturned":2,"planSummary":"COLLSCAN"}}`)

	res := e.Extract(line)
	require.NotNil(t, res.Record)
	assert.True(t, res.Record.IsCollectionScan())
	assert.Equal(t, int64(1000), res.Record.DocsExamined)
}

func TestExtract_TTLDeletion(t *testing.T) {
	e := New(nil)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"INDEX","msg":"Deleted expired documents using index","attr":{"namespace":"site.events","numDeleted":325,"durationMillis":952}}`)

	res := e.Extract(line)
	require.NotNil(t, res.Record)
	rec := res.Record
	assert.Equal(t, model.OpTTLDelete, rec.OpType)
	assert.Equal(t, "site.events", rec.Namespace.String())
	assert.Equal(t, int64(952), rec.DurationMillis)
	assert.Equal(t, int64(325), rec.NReturned)
}

func TestExtract_ConnectionEvents(t *testing.T) {
	e := New(nil)

	start := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:00:01Z"},"c":"NETWORK","msg":"Connection accepted","ctx":"conn42"}`))
	require.NotNil(t, start.ConnEvent)
	assert.Equal(t, ConnStart, start.ConnEvent.Kind)
	assert.Equal(t, int64(42), start.ConnEvent.ID)

	meta := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:00:05Z"},"c":"NETWORK","msg":"client metadata","ctx":"conn42","attr":{"doc":{"driver":{"name":"driver-x","version":"1.2.3"},"os":{"type":"linux"}},"remote":"10.0.0.1:1234"}}`))
	require.NotNil(t, meta.ConnEvent)
	assert.Equal(t, ConnMetadata, meta.ConnEvent.Kind)
	assert.Equal(t, "driver-x", meta.ConnEvent.DriverName)
	assert.Equal(t, "linux", meta.ConnEvent.OSType)

	auth := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:00:10Z"},"c":"ACCESS","msg":"Successfully authenticated","ctx":"conn42","attr":{"user":"alice"}}`))
	require.NotNil(t, auth.ConnEvent)
	assert.Equal(t, ConnAuth, auth.ConnEvent.Kind)
	assert.Equal(t, "alice", auth.ConnEvent.Username)

	end := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:25:00Z"},"c":"NETWORK","msg":"Connection ended","ctx":"conn42"}`))
	require.NotNil(t, end.ConnEvent)
	assert.Equal(t, ConnEnd, end.ConnEvent.Kind)
}

func TestExtract_TransactionOutcome(t *testing.T) {
	e := New(nil)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"TXN","msg":"transaction","attr":{"terminationCause":"committed","commitType":"readConcernMajority","durationMillis":10,"txnRetryCounter":0}}`)

	res := e.Extract(line)
	require.NotNil(t, res.Record)
	assert.Equal(t, "committed", res.Record.TxnTerminationCause)
	assert.Equal(t, "readConcernMajority", res.Record.TxnCommitType)
	assert.Equal(t, int64(10), res.Record.DurationMillis)
}

func TestExtract_NumberLongWrapper(t *testing.T) {
	e := New(nil)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"ns":"appdb.users","command":{"find":"users"},"durationMillis":{"$numberLong":"250"}}}`)

	res := e.Extract(line)
	require.NotNil(t, res.Record)
	assert.Equal(t, int64(250), res.Record.DurationMillis)
}

func TestExtract_MalformedLine(t *testing.T) {
	e := New(nil)
	res := e.Extract([]byte(`not json`))
	assert.Nil(t, res.Record)
	assert.Equal(t, ReasonParseError, res.Reason)
}

func TestExtract_NoAttr(t *testing.T) {
	e := New(nil)
	res := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"hello"}`))
	assert.Nil(t, res.Record)
	assert.Equal(t, ReasonNoAttr, res.Reason)
}

func TestExtract_DatabaseLevelAggregate(t *testing.T) {
	e := New(nil)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"ns":"appdb.$cmd","command":{"aggregate":1},"durationMillis":5}}`)
	res := e.Extract(line)
	require.NotNil(t, res.Record)
	assert.Equal(t, model.OpAggregate, res.Record.OpType)
}

func TestExtract_FilterDroppedLineProducesNoRecord(t *testing.T) {
	// property (ii) from §8: a dropped line, when still run through the
	// extractor directly, produces no record because it lacks the
	// mandatory nested structure noise lines have.
	e := New(nil)
	res := e.Extract([]byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"NETWORK","msg":"connection accepted"}`))
	assert.Nil(t, res.Record)
}
