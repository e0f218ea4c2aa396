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

package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// Diagnostics is the §6 "structured summary": per-phase counters plus
// per-accumulator entry counts, produced at end of run and, if
// SnapshotInterval is set, periodically during it.
type Diagnostics struct {
	LinesRead    int64
	LinesDropped int64
	ParseErrors  int64
	NoAttr       int64
	NoCommand    int64
	NoNamespace  int64
	FoundOps     int64

	PerOpType map[model.OpType]int64

	AccumulatorEntryCounts map[string]int
	AccumulatorOverflows   map[string]int64

	ConnectionsEvicted int64
	ChunksDropped       int64
	ChunksSpilled       int64

	SourceErrors []string
}

// String renders a human-readable debug summary.
func (d *Diagnostics) String() string {
	return fmt.Sprintf(
		"lines_read=%d lines_dropped=%d parse_errors=%d no_attr=%d no_command=%d found_ops=%d evictions=%d",
		d.LinesRead, d.LinesDropped, d.ParseErrors, d.NoAttr, d.NoCommand, d.FoundOps, d.ConnectionsEvicted,
	)
}

// MarshalJSON renders Diagnostics for the CLI collaborator's HTML/CSV
// renderers (§6 [ADD]).
func (d *Diagnostics) MarshalJSON() ([]byte, error) {
	type alias struct {
		LinesRead              int64             `json:"linesRead"`
		LinesDropped           int64             `json:"linesDropped"`
		ParseErrors            int64             `json:"parseErrors"`
		NoAttr                 int64             `json:"noAttr"`
		NoCommand              int64             `json:"noCommand"`
		NoNamespace             int64             `json:"noNamespace"`
		FoundOps               int64             `json:"foundOps"`
		PerOpType              map[string]int64  `json:"perOpType"`
		AccumulatorEntryCounts map[string]int    `json:"accumulatorEntryCounts"`
		AccumulatorOverflows   map[string]int64  `json:"accumulatorOverflows"`
		ConnectionsEvicted     int64             `json:"connectionsEvicted"`
		ChunksDropped          int64             `json:"chunksDropped"`
		ChunksSpilled          int64             `json:"chunksSpilled"`
		SourceErrors           []string          `json:"sourceErrors,omitempty"`
	}
	perOp := make(map[string]int64, len(d.PerOpType))
	for k, v := range d.PerOpType {
		perOp[string(k)] = v
	}
	return json.Marshal(alias{
		LinesRead:              d.LinesRead,
		LinesDropped:           d.LinesDropped,
		ParseErrors:            d.ParseErrors,
		NoAttr:                 d.NoAttr,
		NoCommand:              d.NoCommand,
		NoNamespace:            d.NoNamespace,
		FoundOps:               d.FoundOps,
		PerOpType:              perOp,
		AccumulatorEntryCounts: d.AccumulatorEntryCounts,
		AccumulatorOverflows:   d.AccumulatorOverflows,
		ConnectionsEvicted:     d.ConnectionsEvicted,
		ChunksDropped:          d.ChunksDropped,
		ChunksSpilled:          d.ChunksSpilled,
		SourceErrors:           d.SourceErrors,
	})
}

// counters is the coordinator's live, atomic counter set;
// Coordinator.Diagnostics copies it into an immutable Diagnostics value.
type counters struct {
	linesRead    atomic.Int64
	linesDropped atomic.Int64
	parseErrors  atomic.Int64
	noAttr       atomic.Int64
	noCommand    atomic.Int64
	noNamespace  atomic.Int64
	foundOps     atomic.Int64
	chunksDropped atomic.Int64
	chunksSpilled atomic.Int64

	perOpType struct {
		mu     sync.Mutex
		counts map[model.OpType]*atomic.Int64
	}
}

func newCounters() *counters {
	c := &counters{}
	c.perOpType.counts = make(map[model.OpType]*atomic.Int64)
	return c
}

func (c *counters) bumpOpType(t model.OpType) {
	c.perOpType.mu.Lock()
	n, ok := c.perOpType.counts[t]
	if !ok {
		n = &atomic.Int64{}
		c.perOpType.counts[t] = n
	}
	c.perOpType.mu.Unlock()
	n.Add(1)
}

func (c *counters) opTypeSnapshot() map[model.OpType]int64 {
	c.perOpType.mu.Lock()
	defer c.perOpType.mu.Unlock()
	out := make(map[model.OpType]int64, len(c.perOpType.counts))
	for t, n := range c.perOpType.counts {
		out[t] = n.Load()
	}
	return out
}
