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
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mongolyzer/mongolyzer/internal/accumulator"
	"github.com/mongolyzer/mongolyzer/internal/connjoin"
	"github.com/mongolyzer/mongolyzer/internal/extractor"
	"github.com/mongolyzer/mongolyzer/internal/filter"
	"github.com/mongolyzer/mongolyzer/internal/logger"
	"github.com/mongolyzer/mongolyzer/internal/model"
	"github.com/mongolyzer/mongolyzer/internal/snapshot"
)

// ErrAllSourcesFailed is returned by Run only when every source failed to
// open, per §7's "non-zero exit code only when every source failed to
// open" (the exit-code assignment itself is the CLI collaborator's job).
var ErrAllSourcesFailed = errors.New("pipeline: every source failed to open")

// Config configures a Coordinator. Zero-valued fields fall back to the
// documented defaults from spec.md §4.10/§5.
type Config struct {
	Workers          int
	ChunkSize        int
	QueueSize        int
	OverflowStrategy string // "block" | "expand" (default) | "drop" | "persist"
	BlockTimeout     time.Duration
	PersistDataDir   string
	PersistMaxFile   int64
	SnapshotInterval time.Duration
	FilterConfig     filter.Config
}

const (
	DefaultChunkSize = 25_000
	DefaultQueueSize = 64
)

// Coordinator drives the Filter, Field Extractor, accumulators, and
// connection join over one or more Sources via a bounded worker pool
// (§4.10). Every accumulator field is optional; a nil one is simply never
// fed, matching "all active accumulators."
type Coordinator struct {
	cfg      Config
	filter   *filter.Filter
	extract  *extractor.Extractor
	counters *counters

	Operation   *accumulator.OperationAccumulator
	PlanCache   *accumulator.PlanCacheAccumulator
	QueryHash   *accumulator.QueryHashAccumulator
	Transaction *accumulator.TransactionAccumulator
	ErrorCode   *accumulator.ErrorCodeAccumulator
	IndexUsage  *accumulator.IndexUsageAccumulator
	Conn        *connjoin.Store

	workMu    sync.RWMutex
	work      chan chunk
	expanding atomic.Bool
	strategy  overflowStrategy
	spill     *spillStore

	snapshot func(*Diagnostics)
	ticker   *snapshot.Ticker
}

// New creates a Coordinator. samples, if non-nil, is shared with every
// accumulator that retains a worst-case exemplar (§9).
func New(cfg Config, samples *model.SampleStore) (*Coordinator, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	f, err := filter.New(cfg.FilterConfig)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:      cfg,
		filter:   f,
		extract:  extractor.New(samples),
		counters: newCounters(),
		work:     make(chan chunk, cfg.QueueSize),
	}

	switch cfg.OverflowStrategy {
	case StrategyBlock:
		c.strategy = &blockingStrategy{timeout: cfg.BlockTimeout}
	case StrategyDrop:
		c.strategy = &droppingStrategy{}
	case StrategyPersist:
		if cfg.PersistDataDir != "" {
			spill, err := newSpillStore(cfg.PersistDataDir, cfg.PersistMaxFile)
			if err != nil {
				return nil, err
			}
			c.spill = spill
		}
		c.strategy = &persistingStrategy{spill: c.spill}
	default:
		c.strategy = &expandingStrategy{}
	}

	return c, nil
}

// SetSnapshot registers a callback fired on SnapshotInterval during a long
// run, in addition to the always-present end-of-run summary (SPEC_FULL
// §4.10 [ADD]). A zero Config.SnapshotInterval disables it.
func (c *Coordinator) SetSnapshot(fn func(*Diagnostics)) {
	c.snapshot = fn
}

func (c *Coordinator) getWork() chan chunk {
	c.workMu.RLock()
	defer c.workMu.RUnlock()
	return c.work
}

func (c *Coordinator) sendWork(ch chunk) bool {
	work := c.getWork()
	select {
	case work <- ch:
		return true
	default:
		return false
	}
}

// expandWorkQueue grows the bounded work queue by 50% (minimum +1000),
// migrating any buffered chunks into the new channel, adapted from the
// teacher's Stream.expandDataChannel (stream/handler_data.go).
func (c *Coordinator) expandWorkQueue() {
	if !c.expanding.CompareAndSwap(false, true) {
		return
	}
	defer c.expanding.Store(false)

	c.workMu.RLock()
	oldCap := cap(c.work)
	oldLen := len(c.work)
	c.workMu.RUnlock()
	if float64(oldLen)/float64(oldCap) < 0.8 {
		return
	}

	newCap := int(float64(oldCap) * 1.5)
	if newCap < oldCap+1000 {
		newCap = oldCap + 1000
	}
	newChan := make(chan chunk, newCap)

	c.workMu.Lock()
	oldChan := c.work
	close(oldChan)
	for item := range oldChan {
		newChan <- item
	}
	c.work = newChan
	c.workMu.Unlock()
}

func (c *Coordinator) startSnapshotTicker() {
	c.ticker = snapshot.NewTicker(c.cfg.SnapshotInterval, func() {
		c.snapshot(c.Diagnostics())
	})
}

func (c *Coordinator) stopSnapshotTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
}

// Diagnostics returns a point-in-time snapshot of the coordinator's
// counters and every wired accumulator's entry counts, safe to call at any
// time but authoritative only after Run returns (§5 "derived getters...
// run only after all workers have drained").
func (c *Coordinator) Diagnostics() *Diagnostics {
	d := &Diagnostics{
		LinesRead:              c.counters.linesRead.Load(),
		LinesDropped:           c.counters.linesDropped.Load(),
		ParseErrors:            c.counters.parseErrors.Load(),
		NoAttr:                 c.counters.noAttr.Load(),
		NoCommand:              c.counters.noCommand.Load(),
		NoNamespace:            c.counters.noNamespace.Load(),
		FoundOps:               c.counters.foundOps.Load(),
		PerOpType:              c.counters.opTypeSnapshot(),
		AccumulatorEntryCounts: map[string]int{},
		AccumulatorOverflows:   map[string]int64{},
		ChunksDropped:          c.counters.chunksDropped.Load(),
		ChunksSpilled:          c.counters.chunksSpilled.Load(),
	}
	for _, a := range c.activeAccumulators() {
		d.AccumulatorEntryCounts[a.Name()] = a.EntryCount()
		d.AccumulatorOverflows[a.Name()] = a.Overflows()
	}
	if c.Conn != nil {
		d.ConnectionsEvicted = c.Conn.EvictedCount()
	}
	return d
}

func (c *Coordinator) activeAccumulators() []accumulator.Accumulator {
	var out []accumulator.Accumulator
	if c.Operation != nil {
		out = append(out, c.Operation)
	}
	if c.PlanCache != nil {
		out = append(out, c.PlanCache)
	}
	if c.QueryHash != nil {
		out = append(out, c.QueryHash)
	}
	if c.Transaction != nil {
		out = append(out, c.Transaction)
	}
	if c.ErrorCode != nil {
		out = append(out, c.ErrorCode)
	}
	if c.IndexUsage != nil {
		out = append(out, c.IndexUsage)
	}
	return out
}

// Run drives every source to completion: Opened -> Reading -> Draining ->
// Closed (§4.10). It returns a non-nil Diagnostics even on partial
// failure; it returns ErrAllSourcesFailed only when every source failed to
// open (§7).
func (c *Coordinator) Run(ctx context.Context, sources ...Source) (*Diagnostics, error) {
	if c.cfg.SnapshotInterval > 0 && c.snapshot != nil {
		c.startSnapshotTicker()
		defer c.stopSnapshotTicker()
	}

	workers, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		workers.Go(func() error {
			return c.workerLoop(workerCtx)
		})
	}

	producers, producerCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var sourceErrors []error
	var okCount atomic.Int64

	for _, src := range sources {
		src := src
		producers.Go(func() error {
			err := c.readSource(producerCtx, src)
			if err != nil {
				mu.Lock()
				sourceErrors = append(sourceErrors, &SourceError{Source: src.Name(), Err: err})
				mu.Unlock()
				logger.Error("pipeline: source %s failed: %v", src.Name(), err)
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}
	// producers.Wait never itself returns an error: per-source failures are
	// collected, never propagated, so one failing source never cancels
	// the others (§7).
	_ = producers.Wait()

	if len(sources) > 0 && okCount.Load() == 0 {
		close(c.getWork())
		_ = workers.Wait()
		d := c.Diagnostics()
		for _, e := range sourceErrors {
			d.SourceErrors = append(d.SourceErrors, e.Error())
		}
		return d, ErrAllSourcesFailed
	}

	if c.spill != nil {
		_ = c.spill.Drain(func(ch chunk) {
			c.strategy.dispatch(c, ch)
		})
	}

	close(c.getWork())
	if err := workers.Wait(); err != nil {
		return c.Diagnostics(), err
	}

	if c.Conn != nil {
		c.Conn.Drain()
	}

	d := c.Diagnostics()
	for _, e := range sourceErrors {
		d.SourceErrors = append(d.SourceErrors, e.Error())
	}
	return d, nil
}

// readSource implements the Opened->Reading->Draining transitions for one
// source: it reads lines serially, classifies each with the Filter, and
// dispatches admitted lines in chunks of cfg.ChunkSize to the bounded work
// queue via the configured overflow strategy.
func (c *Coordinator) readSource(ctx context.Context, src Source) error {
	lines, errs := src.Lines(ctx)
	buf := make([][]byte, 0, c.cfg.ChunkSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		c.strategy.dispatch(c, chunk{lines: buf})
		buf = make([][]byte, 0, c.cfg.ChunkSize)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				flush()
				if errs != nil {
					select {
					case err := <-errs:
						return err
					default:
					}
				}
				return nil
			}
			c.counters.linesRead.Add(1)
			if c.filter.Classify(line) == filter.Drop {
				c.counters.linesDropped.Add(1)
				continue
			}
			buf = append(buf, line)
			if len(buf) >= c.cfg.ChunkSize {
				flush()
			}
		case err, ok := <-errs:
			if !ok {
				// errs closed with no error pending; stop selecting it so
				// the loop doesn't spin on an always-ready closed channel.
				errs = nil
				continue
			}
			if err != nil {
				flush()
				return err
			}
		}
	}
}

// workerLoop drains chunks from the work queue until it is closed and
// empty, running the Field Extractor and fanning results into every
// active accumulator (§4.10, §5).
func (c *Coordinator) workerLoop(ctx context.Context) error {
	for {
		work := c.getWork()
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-work:
			if !ok {
				if c.getWork() != work {
					continue
				}
				return nil
			}
			for _, line := range ch.lines {
				c.processLine(line)
			}
		}
	}
}

func (c *Coordinator) processLine(line []byte) {
	res := c.extract.Extract(line)

	switch res.Reason {
	case extractor.ReasonParseError:
		c.counters.parseErrors.Add(1)
	case extractor.ReasonNoAttr:
		c.counters.noAttr.Add(1)
	case extractor.ReasonNoCommand:
		c.counters.noCommand.Add(1)
	case extractor.ReasonNoNamespace:
		c.counters.noNamespace.Add(1)
	}

	if res.ConnEvent != nil && c.Conn != nil {
		c.dispatchConnEvent(res.ConnEvent)
	}

	if res.Record == nil {
		return
	}
	if !res.Record.OpType.Valid() {
		return
	}
	c.dispatchRecord(res.Record)
}

func (c *Coordinator) dispatchConnEvent(ev *extractor.ConnEvent) {
	switch ev.Kind {
	case extractor.ConnAuth:
		c.Conn.RecordAuth(ev.ID, ev.Username, ev.SampleMessage, ev.HasSample, ev.Timestamp)
	case extractor.ConnMetadata:
		c.Conn.RecordMetadata(ev.ID, ev.DriverName, ev.DriverVersion, ev.CompressorSet, ev.OSType, ev.Platform, ev.RemoteHost, ev.Timestamp)
	case extractor.ConnStart:
		c.Conn.RecordConnStart(ev.ID, ev.Timestamp)
	case extractor.ConnEnd:
		c.Conn.RecordConnEnd(ev.ID, ev.Timestamp)
	}
}

func (c *Coordinator) dispatchRecord(rec *model.OperationRecord) {
	c.counters.foundOps.Add(1)
	c.counters.bumpOpType(rec.OpType)

	if c.Operation != nil {
		c.Operation.Record(model.OperationKey{Namespace: rec.Namespace, OpType: rec.OpType}, rec)
	}

	if rec.OpType.SupportsQueryShape() && rec.QueryHash != "" {
		if c.PlanCache != nil && rec.PlanCacheKey != "" {
			c.PlanCache.Record(model.PlanCacheKey{
				Namespace:    rec.Namespace,
				PlanCacheKey: rec.PlanCacheKey,
				QueryHash:    rec.QueryHash,
				PlanSummary:  rec.PlanSummary,
			}, rec)
		}
		if c.QueryHash != nil {
			c.QueryHash.Record(model.QueryHashKey{
				Namespace:   rec.Namespace,
				OpType:      rec.OpType,
				QueryHash:   rec.QueryHash,
				PlanSummary: rec.PlanSummary,
			}, rec, time.Now())
		}
	}

	if c.Transaction != nil && rec.TxnTerminationCause != "" {
		c.Transaction.Record(model.TransactionKey{
			RetryCounter:     rec.TxnRetryCounter,
			TerminationCause: rec.TxnTerminationCause,
			CommitType:       rec.TxnCommitType,
		}, rec)
	}

	if c.ErrorCode != nil && rec.ErrorCodeName != "" {
		c.ErrorCode.Record(rec.ErrorCodeName, rec.ErrorCodeNumber, rec.HasErrorCode, rec.ErrorMessage, rec.ErrorMessage != "")
	}

	if c.IndexUsage != nil && rec.PlanSummary != "" {
		c.IndexUsage.Record(model.IndexUsageKey{Namespace: rec.Namespace, PlanSummary: rec.PlanSummary}, rec)
	}
}
