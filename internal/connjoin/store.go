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
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// DefaultSoftCap is the documented default connection-table soft cap
// (§4.9).
const DefaultSoftCap = 5_000_000

// DefaultSampleProbability is the fair-coin bias deciding whether a
// connection is retained for full lifetime tracking (§3).
const DefaultSampleProbability = 0.1

// DefaultEvictionAge is the age-based eviction threshold.
const DefaultEvictionAge = time.Hour

// Config configures a Store. The zero value is not directly usable;
// NewStore fills in documented defaults for any zero field.
type Config struct {
	SoftCap           int64
	SampleProbability float64
	EvictionAge       time.Duration
	// Rand, if set, is used to decide sampled-for-lifetime. Tests inject a
	// seeded source to force a deterministic outcome (§8 scenario 4);
	// production callers normally leave this nil.
	Rand *rand.Rand
}

type connState struct {
	mu   sync.Mutex
	info model.ConnectionInfo
}

// Store is the live, transient connection-join table plus the driver
// aggregate it feeds (§4.9).
type Store struct {
	cfg     Config
	randMu  sync.Mutex
	conns   cmap.ConcurrentMap[int64, *connState]
	driver  *DriverAccumulator
	evicted atomic.Int64
}

// NewStore creates a Store with cfg's defaults filled in.
func NewStore(cfg Config) *Store {
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = DefaultSoftCap
	}
	if cfg.SampleProbability <= 0 {
		cfg.SampleProbability = DefaultSampleProbability
	}
	if cfg.EvictionAge <= 0 {
		cfg.EvictionAge = DefaultEvictionAge
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Store{
		cfg: cfg,
		conns: cmap.NewWithCustomShardingFunction[int64, *connState](
			func(k int64) uint32 { return uint32(xxhash.Sum64String(strconv.FormatInt(k, 10))) }),
		driver: NewDriverAccumulator(),
	}
}

// Driver returns the per-driver aggregate this store feeds.
func (s *Store) Driver() *DriverAccumulator { return s.driver }

// EvictedCount returns the number of ConnectionInfo entries evicted under
// backpressure so far (§7 EvictionEvent).
func (s *Store) EvictedCount() int64 { return s.evicted.Load() }

// Len returns the number of live connections currently tracked.
func (s *Store) Len() int { return s.conns.Count() }

func (s *Store) sample() bool {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.cfg.Rand.Float64() < s.cfg.SampleProbability
}

func (s *Store) getOrCreate(connID int64) *connState {
	return s.conns.Upsert(connID, nil, func(exists bool, valueInMap, _ *connState) *connState {
		if exists {
			return valueInMap
		}
		return &connState{info: model.ConnectionInfo{
			ConnID:             connID,
			SampledForLifetime: s.sample(),
		}}
	})
}

// isExcludedDriver reports whether a driver name is excluded entirely from
// the driver aggregate (§4.9).
func isExcludedDriver(name string) bool {
	return strings.HasPrefix(name, "NetworkInterface") || name == "MongoDB Internal Client"
}

// RecordAuth implements contract item 1: it extracts the connection id
// (by the caller, who passes connID directly), creates or updates the
// ConnectionInfo, and stores at most one sample auth message per
// connection.
func (s *Store) RecordAuth(connID int64, username string, sampleMessage string, hasSample bool, now time.Time) {
	state := s.getOrCreate(connID)
	state.mu.Lock()
	state.info.Username = username
	state.info.HasUsername = true
	if hasSample && !state.info.HasSampleAuth {
		state.info.SampleAuthMessage = sampleMessage
		state.info.HasSampleAuth = true
	}
	state.info.LastTouched = now

	var oldKey, newKey model.DriverKey
	var rekey bool
	if state.info.HasDriverKey && state.info.DriverKey.Username != username {
		oldKey = state.info.DriverKey
		newKey = oldKey
		newKey.Username = username
		state.info.DriverKey = newKey
		rekey = true
	}
	remoteHost := state.info.RemoteHost
	state.mu.Unlock()

	// The metadata event registers the connection under the key known at
	// that time; auth commonly arrives afterward and supplies the
	// username the driver key was missing (§8 scenario 4). Rekey rather
	// than double-count.
	if rekey {
		s.driver.Rekey(oldKey, newKey, remoteHost)
	}

	s.maybeEvict()
}

// RecordMetadata implements contract item 2. Drivers matching the
// exclusion rule are never linked to a ConnectionInfo and never reach the
// driver aggregate.
func (s *Store) RecordMetadata(connID int64, driverName, driverVersion, compressorSet, osType, platform, remoteHost string, now time.Time) {
	if isExcludedDriver(driverName) {
		return
	}

	state := s.getOrCreate(connID)
	state.mu.Lock()
	username := state.info.Username
	key := model.DriverKey{
		DriverName:    driverName,
		DriverVersion: driverVersion,
		OSType:        osType,
		Platform:      platform,
		CompressorSet: compressorSet,
		Username:      username,
	}
	state.info.DriverKey = key
	state.info.HasDriverKey = true
	state.info.RemoteHost = remoteHost
	state.info.LastTouched = now
	state.mu.Unlock()

	s.driver.RecordConnection(key, remoteHost)
	s.maybeEvict()
}

// RecordConnStart implements contract item 3's start half. A sampled
// connection's lifetime is measured from this event's timestamp, not the
// later metadata event's (§8 scenario 4).
func (s *Store) RecordConnStart(connID int64, now time.Time) {
	state := s.getOrCreate(connID)
	state.mu.Lock()
	if state.info.SampledForLifetime && !state.info.HasStart {
		state.info.StartTimestamp = now
		state.info.HasStart = true
	}
	state.info.LastTouched = now
	state.mu.Unlock()
	s.maybeEvict()
}

// RecordConnEnd implements contract item 3's end half: for a sampled
// connection with a known driver key and a start-timestamp, it computes
// the connection lifetime and folds it into the driver entry. The
// ConnectionInfo is removed unconditionally.
func (s *Store) RecordConnEnd(connID int64, now time.Time) {
	state, ok := s.conns.Get(connID)
	if !ok {
		return
	}
	state.mu.Lock()
	info := state.info
	state.mu.Unlock()

	if info.SampledForLifetime && info.HasDriverKey && info.HasStart {
		lifetime := now.Sub(info.StartTimestamp)
		s.driver.RecordLifetime(info.DriverKey, lifetime.Milliseconds())
	}
	s.conns.Remove(connID)
}

// Drain contributes nothing for any still-alive connection (avoiding bias
// from censored observations, per §4.9/§9 Open Question ii) and clears the
// table. Call once, at end of run.
func (s *Store) Drain() {
	s.conns.Clear()
}
