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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// alwaysSampleRand reports 0, forcing every sample() draw below any
// positive SampleProbability threshold, deterministically forcing
// sampled-for-lifetime true (§8 scenario 4: "force by seeding RNG").
func alwaysSampleRand() *rand.Rand {
	return rand.New(&zeroSource{})
}

// zeroSource is a rand.Source whose every draw is zero.
type zeroSource struct{}

func (z *zeroSource) Int63() int64 { return 0 }
func (z *zeroSource) Seed(int64)   {}

func TestStore_ThreeStreamConnectionJoin(t *testing.T) {
	s := NewStore(Config{Rand: alwaysSampleRand()})

	const connID = 42
	t0 := time.Unix(1000, 0)

	s.RecordConnStart(connID, t0)
	s.RecordMetadata(connID, "driver-x", "1.2.3", "", "linux", "", "", t0.Add(5*time.Second))
	s.RecordAuth(connID, "alice", "", false, t0.Add(10*time.Second))
	s.RecordConnEnd(connID, t0.Add(1500*time.Second))

	key := model.DriverKey{DriverName: "driver-x", DriverVersion: "1.2.3", OSType: "linux", Username: "alice"}
	report, ok := s.Driver().Report(key)
	require.True(t, ok)
	assert.Equal(t, int64(1), report.ConnectionCount)
	assert.Equal(t, int64(1), report.LifetimeCount)
	assert.Equal(t, float64(1500*1000), report.LifetimeMean)

	assert.Equal(t, 0, s.Len(), "connection end always removes the ConnectionInfo")
}

func TestStore_ExcludedDriversNeverReachAggregate(t *testing.T) {
	s := NewStore(Config{Rand: alwaysSampleRand()})
	s.RecordMetadata(1, "NetworkInterface-ASIO", "1.0", "", "linux", "", "", time.Unix(0, 0))
	s.RecordMetadata(2, "MongoDB Internal Client", "1.0", "", "linux", "", "", time.Unix(0, 0))

	assert.Equal(t, 0, s.Driver().EntryCount())
}

// neverSampleSource reports an int63 near the max, forcing Float64() just under 1
// and every sample() draw above any SampleProbability < 1.
type neverSampleSource struct{}

func (neverSampleSource) Int63() int64 { return 1<<63 - 1<<10 }
func (neverSampleSource) Seed(int64)   {}

func TestStore_UnsampledConnectionCountsButNoLifetime(t *testing.T) {
	s := NewStore(Config{Rand: rand.New(neverSampleSource{})})

	const connID = 9
	t0 := time.Unix(2000, 0)

	s.RecordConnStart(connID, t0)
	s.RecordMetadata(connID, "driver-y", "2.0.0", "", "linux", "", "", t0.Add(time.Second))
	s.RecordConnEnd(connID, t0.Add(10*time.Second))

	key := model.DriverKey{DriverName: "driver-y", DriverVersion: "2.0.0", OSType: "linux"}
	report, ok := s.Driver().Report(key)
	require.True(t, ok)
	assert.Equal(t, int64(1), report.ConnectionCount)
	assert.Equal(t, int64(0), report.LifetimeCount)
}

func TestStore_EndOfRunDropsStillOpenConnections(t *testing.T) {
	s := NewStore(Config{Rand: alwaysSampleRand()})
	s.RecordConnStart(7, time.Unix(0, 0))
	require.Equal(t, 1, s.Len())

	s.Drain()
	assert.Equal(t, 0, s.Len())
}

func TestStore_EvictionRemovesStaleConnectionsFirst(t *testing.T) {
	s := NewStore(Config{SoftCap: 2, EvictionAge: time.Millisecond, Rand: alwaysSampleRand()})

	old := time.Now().Add(-time.Hour)
	s.RecordConnStart(1, old)
	s.RecordConnStart(2, old)
	s.RecordConnStart(3, time.Now())

	assert.Greater(t, s.EvictedCount(), int64(0))
}
