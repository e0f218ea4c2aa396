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

// Package connjoin correlates three independent connection-scoped event
// streams — metadata, auth, and lifetime start/end — keyed by connection
// id, and rolls the result up into per-driver connection counts and
// lifetime statistics (§4.9).
package connjoin

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

type driverEntry struct {
	mu sync.Mutex

	connectionCount int64
	remoteHosts     map[string]struct{}

	lifetimeSum   int64
	lifetimeCount int64
	lifetimeMin   int64
	lifetimeMax   int64
}

func newDriverEntry() *driverEntry {
	return &driverEntry{remoteHosts: make(map[string]struct{})}
}

// DriverReport is the read-only snapshot for one driver aggregate key.
type DriverReport struct {
	ConnectionCount int64
	UniqueHosts     int
	LifetimeCount   int64
	LifetimeMean    float64
	LifetimeMin     int64
	LifetimeMax     int64
}

// DriverAccumulator maintains one entry per (driver-name, driver-version,
// os-type, platform, compressor-set, username) key.
type DriverAccumulator struct {
	entries cmap.ConcurrentMap[model.DriverKey, *driverEntry]
}

func NewDriverAccumulator() *DriverAccumulator {
	return &DriverAccumulator{
		entries: cmap.NewWithCustomShardingFunction[model.DriverKey, *driverEntry](
			func(k model.DriverKey) uint32 { return uint32(k.Hash()) }),
	}
}

func (a *DriverAccumulator) Name() string    { return "driver" }
func (a *DriverAccumulator) EntryCount() int { return a.entries.Count() }

func (a *DriverAccumulator) getOrCreate(key model.DriverKey) *driverEntry {
	return a.entries.Upsert(key, nil, func(exists bool, valueInMap, _ *driverEntry) *driverEntry {
		if exists {
			return valueInMap
		}
		return newDriverEntry()
	})
}

// RecordConnection increments the connection count for key and unions
// remoteHost into its observed remote-host set.
func (a *DriverAccumulator) RecordConnection(key model.DriverKey, remoteHost string) {
	entry := a.getOrCreate(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.connectionCount++
	if remoteHost != "" {
		entry.remoteHosts[remoteHost] = struct{}{}
	}
}

// Rekey migrates one connection's count and remote host from oldKey to
// newKey. It is used when an auth event arrives after the metadata event
// that first registered the connection, learning the username the
// original key was missing (§4.9, §8 scenario 4's mandatory
// metadata-then-auth ordering).
func (a *DriverAccumulator) Rekey(oldKey, newKey model.DriverKey, remoteHost string) {
	if oldKey == newKey {
		return
	}

	old := a.getOrCreate(oldKey)
	old.mu.Lock()
	old.connectionCount--
	if remoteHost != "" {
		delete(old.remoteHosts, remoteHost)
	}
	old.mu.Unlock()

	a.RecordConnection(newKey, remoteHost)
}

// RecordLifetime merges a single observed connection lifetime (in
// milliseconds) into key's running lifetime statistics.
func (a *DriverAccumulator) RecordLifetime(key model.DriverKey, lifetimeMillis int64) {
	entry := a.getOrCreate(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.lifetimeCount == 0 {
		entry.lifetimeMin, entry.lifetimeMax = lifetimeMillis, lifetimeMillis
	} else {
		if lifetimeMillis < entry.lifetimeMin {
			entry.lifetimeMin = lifetimeMillis
		}
		if lifetimeMillis > entry.lifetimeMax {
			entry.lifetimeMax = lifetimeMillis
		}
	}
	entry.lifetimeSum += lifetimeMillis
	entry.lifetimeCount++
}

func (a *DriverAccumulator) Report(key model.DriverKey) (DriverReport, bool) {
	entry, ok := a.entries.Get(key)
	if !ok {
		return DriverReport{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	var mean float64
	if entry.lifetimeCount > 0 {
		mean = float64(entry.lifetimeSum) / float64(entry.lifetimeCount)
	}
	return DriverReport{
		ConnectionCount: entry.connectionCount,
		UniqueHosts:     len(entry.remoteHosts),
		LifetimeCount:   entry.lifetimeCount,
		LifetimeMean:    mean,
		LifetimeMin:     entry.lifetimeMin,
		LifetimeMax:     entry.lifetimeMax,
	}, true
}

func (a *DriverAccumulator) Keys() []model.DriverKey {
	return a.entries.Keys()
}
