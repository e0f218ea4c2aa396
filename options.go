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

package mongolyzer

import (
	"math/rand"
	"time"

	"github.com/mongolyzer/mongolyzer/internal/connjoin"
	"github.com/mongolyzer/mongolyzer/internal/filter"
)

// Option configures a Mongolyzer at construction time.
type Option func(*Mongolyzer)

// WithWorkers sets the bounded worker pool size. Zero or negative leaves
// the runtime's GOMAXPROCS default in place.
func WithWorkers(n int) Option {
	return func(m *Mongolyzer) { m.workers = n }
}

// WithChunkSize sets the dispatch chunk size B (default 25000).
func WithChunkSize(n int) Option {
	return func(m *Mongolyzer) { m.chunkSize = n }
}

// WithQueueSize sets the bounded work-queue capacity between the
// coordinator and the worker pool.
func WithQueueSize(n int) Option {
	return func(m *Mongolyzer) { m.queueSize = n }
}

// WithOverflowStrategy selects the work-queue overflow strategy: "block",
// "expand" (default), "drop", or "persist".
func WithOverflowStrategy(strategy string) Option {
	return func(m *Mongolyzer) { m.overflowStrategy = strategy }
}

// WithBlockTimeout sets how long the "block" overflow strategy waits on its
// first enqueue attempt; after it elapses the strategy keeps waiting on a
// plain blocking send, so the total wait is not bounded.
func WithBlockTimeout(d time.Duration) Option {
	return func(m *Mongolyzer) { m.blockTimeout = d }
}

// WithPersistence configures the "persist" overflow strategy's on-disk
// spill directory and file-rotation size.
func WithPersistence(dataDir string, maxFileSize int64) Option {
	return func(m *Mongolyzer) {
		m.persistDataDir = dataDir
		m.persistMaxFile = maxFileSize
	}
}

// WithSnapshotInterval registers a periodic diagnostic callback fired every
// interval during a long-running ingest, in addition to the always-present
// end-of-run summary. A zero interval (the default) disables it.
func WithSnapshotInterval(interval time.Duration, fn func(*Diagnostics)) Option {
	return func(m *Mongolyzer) {
		m.snapshotInterval = interval
		m.snapshotFn = fn
	}
}

// WithFilterPatterns replaces the default noise-pattern set wholesale.
func WithFilterPatterns(patterns []string) Option {
	return func(m *Mongolyzer) { m.filterPatterns = patterns }
}

// WithFilterAdd appends additional noise substrings to the resulting set.
func WithFilterAdd(patterns []string) Option {
	return func(m *Mongolyzer) { m.filterAdd = patterns }
}

// WithFilterRemove deletes substrings from the resulting noise set.
func WithFilterRemove(patterns []string) Option {
	return func(m *Mongolyzer) { m.filterRemove = patterns }
}

// WithAdmitOverride compiles expression as an expr-lang boolean predicate
// that can rescue an otherwise-dropped line, evaluated against
// {"line": string, "drop": bool}.
func WithAdmitOverride(expression string) Option {
	return func(m *Mongolyzer) { m.admitOverride = expression }
}

// WithQueryHashSlowPlanningN sets the top-N reported by the slow-
// planning accumulator embedded in the query-hash accumulator (default 100).
func WithQueryHashSlowPlanningN(n int) Option {
	return func(m *Mongolyzer) { m.queryHashSlowN = n }
}

// WithoutPlanCache disables the plan-cache-identity accumulator.
func WithoutPlanCache() Option {
	return func(m *Mongolyzer) { m.withPlanCache = false }
}

// WithoutQueryHash disables the query-hash accumulator.
func WithoutQueryHash() Option {
	return func(m *Mongolyzer) { m.withQueryHash = false }
}

// WithoutTransaction disables the transaction-outcome accumulator.
func WithoutTransaction() Option {
	return func(m *Mongolyzer) { m.withTransaction = false }
}

// WithoutErrorCode disables the error-code accumulator.
func WithoutErrorCode() Option {
	return func(m *Mongolyzer) { m.withErrorCode = false }
}

// WithoutIndexUsage disables the index-usage accumulator.
func WithoutIndexUsage() Option {
	return func(m *Mongolyzer) { m.withIndexUsage = false }
}

// WithoutConnectionJoin disables the connection-join subsystem entirely.
func WithoutConnectionJoin() Option {
	return func(m *Mongolyzer) { m.withConnJoin = false }
}

// WithConnectionJoinConfig overrides the connection join's soft cap,
// sample probability, and eviction age.
func WithConnectionJoinConfig(softCap int64, sampleProbability float64, evictionAge time.Duration) Option {
	return func(m *Mongolyzer) {
		m.connJoinCfg = connjoin.Config{
			SoftCap:           softCap,
			SampleProbability: sampleProbability,
			EvictionAge:       evictionAge,
		}
	}
}

// WithConnectionJoinRand injects a seeded random source for the connection
// join's lifetime-sampling coin flip. Intended for tests; production
// callers normally leave this unset.
func WithConnectionJoinRand(r *rand.Rand) Option {
	return func(m *Mongolyzer) { m.connJoinCfg.Rand = r }
}

func filterConfig(patterns, add, remove []string, admitOverride string) filter.Config {
	return filter.Config{
		Patterns:      patterns,
		Add:           add,
		Remove:        remove,
		AdmitOverride: admitOverride,
	}
}
