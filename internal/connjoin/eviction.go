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

package connjoin

import (
	"time"

	"github.com/mongolyzer/mongolyzer/internal/logger"
)

// maybeEvict runs the emergency eviction policy (§4.9) once the table
// exceeds the configured soft cap: first age-based (last-touched older
// than EvictionAge), then, if that alone wasn't enough, structural
// (anything without an assigned driver key). Evictions are counted but
// never raise an error.
func (s *Store) maybeEvict() {
	if int64(s.conns.Count()) <= s.cfg.SoftCap {
		return
	}

	cutoff := time.Now().Add(-s.cfg.EvictionAge)
	var stale []int64
	for tuple := range s.conns.IterBuffered() {
		tuple.Val.mu.Lock()
		touched := tuple.Val.info.LastTouched
		tuple.Val.mu.Unlock()
		if touched.Before(cutoff) {
			stale = append(stale, tuple.Key)
		}
	}
	for _, id := range stale {
		s.conns.Remove(id)
		s.evicted.Add(1)
	}
	if len(stale) > 0 {
		logger.Warn("connjoin: evicted %d stale connections, table over soft cap %d", len(stale), s.cfg.SoftCap)
	}

	if int64(s.conns.Count()) <= s.cfg.SoftCap {
		return
	}

	var structural []int64
	for tuple := range s.conns.IterBuffered() {
		tuple.Val.mu.Lock()
		hasDriver := tuple.Val.info.HasDriverKey
		tuple.Val.mu.Unlock()
		if !hasDriver {
			structural = append(structural, tuple.Key)
		}
	}
	for _, id := range structural {
		s.conns.Remove(id)
		s.evicted.Add(1)
	}
	if len(structural) > 0 {
		logger.Warn("connjoin: evicted %d structural (no driver key) connections, table still over soft cap %d", len(structural), s.cfg.SoftCap)
	}
}
