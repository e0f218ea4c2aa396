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

// Package mongolyzer is the public entry point for the ingest/parse/
// aggregate log-analytics pipeline: Filter, Field Extractor, the
// accumulator family, and the Connection Join subsystem, driven over one
// or more caller-supplied sources by a bounded worker pool.
package mongolyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/mongolyzer/mongolyzer/internal/accumulator"
	"github.com/mongolyzer/mongolyzer/internal/connjoin"
	"github.com/mongolyzer/mongolyzer/internal/model"
	"github.com/mongolyzer/mongolyzer/internal/pipeline"
)

// Source is the external-collaborator seam: a file opener, decompression
// selector, or network reader only needs to implement this. No concrete
// Source ships in this module.
type Source = pipeline.Source

// Diagnostics is the end-of-run (and, with WithSnapshotInterval, periodic)
// structured summary.
type Diagnostics = pipeline.Diagnostics

// ErrAllSourcesFailed is returned by Run only when every source failed to
// open; the exit-code this maps to is the CLI collaborator's decision.
var ErrAllSourcesFailed = pipeline.ErrAllSourcesFailed

// Mongolyzer is the ingest pipeline's public handle. A zero value is not
// usable; construct one with New.
type Mongolyzer struct {
	workers          int
	chunkSize        int
	queueSize        int
	overflowStrategy string
	blockTimeout     time.Duration
	persistDataDir   string
	persistMaxFile   int64
	snapshotInterval time.Duration
	snapshotFn       func(*Diagnostics)

	filterPatterns []string
	filterAdd      []string
	filterRemove   []string
	admitOverride  string

	withOperation   bool
	withPlanCache   bool
	withQueryHash   bool
	queryHashSlowN  int
	withTransaction bool
	withErrorCode   bool
	withIndexUsage  bool
	withConnJoin    bool
	connJoinCfg     connjoin.Config

	samples *model.SampleStore
	coord   *pipeline.Coordinator
}

// New creates a Mongolyzer. Every accumulator defaults to enabled (§4's
// "all active accumulators" baseline); the Without* options narrow the
// set.
func New(options ...Option) *Mongolyzer {
	m := &Mongolyzer{
		overflowStrategy: pipeline.StrategyExpand,
		queryHashSlowN:   100,
		withOperation:    true,
		withPlanCache:    true,
		withQueryHash:    true,
		withTransaction:  true,
		withErrorCode:    true,
		withIndexUsage:   true,
		withConnJoin:     true,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// build lazily constructs the underlying Coordinator and accumulator set on
// first Run, so every Option has had a chance to apply first.
func (m *Mongolyzer) build() error {
	if m.coord != nil {
		return nil
	}

	m.samples = model.NewSampleStore()

	coord, err := pipeline.New(pipeline.Config{
		Workers:          m.workers,
		ChunkSize:        m.chunkSize,
		QueueSize:        m.queueSize,
		OverflowStrategy: m.overflowStrategy,
		BlockTimeout:     m.blockTimeout,
		PersistDataDir:   m.persistDataDir,
		PersistMaxFile:   m.persistMaxFile,
		SnapshotInterval: m.snapshotInterval,
		FilterConfig: filterConfig(
			m.filterPatterns, m.filterAdd, m.filterRemove, m.admitOverride,
		),
	}, m.samples)
	if err != nil {
		return fmt.Errorf("mongolyzer: build coordinator: %w", err)
	}

	if m.withOperation {
		coord.Operation = accumulator.NewOperationAccumulator(m.samples)
	}
	if m.withPlanCache {
		coord.PlanCache = accumulator.NewPlanCacheAccumulator(m.samples)
	}
	if m.withQueryHash {
		coord.QueryHash = accumulator.NewQueryHashAccumulator(m.samples, m.queryHashSlowN)
	}
	if m.withTransaction {
		coord.Transaction = accumulator.NewTransactionAccumulator()
	}
	if m.withErrorCode {
		coord.ErrorCode = accumulator.NewErrorCodeAccumulator()
	}
	if m.withIndexUsage {
		coord.IndexUsage = accumulator.NewIndexUsageAccumulator()
	}
	if m.withConnJoin {
		coord.Conn = connjoin.NewStore(m.connJoinCfg)
	}
	if m.snapshotFn != nil {
		coord.SetSnapshot(m.snapshotFn)
	}

	m.coord = coord
	return nil
}

// Run drives every source to completion and returns the final Diagnostics.
// It returns ErrAllSourcesFailed only when every source failed to open;
// other source failures are collected into Diagnostics.SourceErrors without
// aborting the run.
func (m *Mongolyzer) Run(ctx context.Context, sources ...Source) (*Diagnostics, error) {
	if err := m.build(); err != nil {
		return nil, err
	}
	return m.coord.Run(ctx, sources...)
}

// Operation returns the namespace/op-type accumulator, or nil if disabled.
func (m *Mongolyzer) Operation() *accumulator.OperationAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.Operation
}

// PlanCache returns the plan-cache-identity accumulator, or nil if disabled.
func (m *Mongolyzer) PlanCache() *accumulator.PlanCacheAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.PlanCache
}

// QueryHash returns the query-hash accumulator, or nil if disabled.
func (m *Mongolyzer) QueryHash() *accumulator.QueryHashAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.QueryHash
}

// Transaction returns the transaction-outcome accumulator, or nil if
// disabled.
func (m *Mongolyzer) Transaction() *accumulator.TransactionAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.Transaction
}

// ErrorCode returns the error-code accumulator, or nil if disabled.
func (m *Mongolyzer) ErrorCode() *accumulator.ErrorCodeAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.ErrorCode
}

// IndexUsage returns the index-usage accumulator, or nil if disabled.
func (m *Mongolyzer) IndexUsage() *accumulator.IndexUsageAccumulator {
	if m.coord == nil {
		return nil
	}
	return m.coord.IndexUsage
}

// Connections returns the connection-join store, or nil if disabled.
func (m *Mongolyzer) Connections() *connjoin.Store {
	if m.coord == nil {
		return nil
	}
	return m.coord.Conn
}

// Diagnostics returns a point-in-time snapshot; authoritative only after
// Run returns.
func (m *Mongolyzer) Diagnostics() *Diagnostics {
	if m.coord == nil {
		return &Diagnostics{}
	}
	return m.coord.Diagnostics()
}
