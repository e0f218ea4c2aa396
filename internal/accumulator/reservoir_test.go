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

package accumulator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservoir_EmptyPercentileIsZero(t *testing.T) {
	r := NewReservoir()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, float64(0), r.Percentile(0.95))
}

func TestReservoir_SingleValue(t *testing.T) {
	r := NewReservoir()
	require.True(t, r.Add(42))
	assert.Equal(t, float64(42), r.Percentile(0.5))
	assert.Equal(t, float64(42), r.Percentile(0.95))
}

func TestReservoir_PercentileWithinMinMax(t *testing.T) {
	r := NewReservoir()
	for _, v := range []float64{10, 20, 30, 40, 50} {
		require.True(t, r.Add(v))
	}
	p95 := r.Percentile(0.95)
	assert.GreaterOrEqual(t, p95, float64(10))
	assert.LessOrEqual(t, p95, float64(50))
}

func TestReservoir_StopsAcceptingPastCap(t *testing.T) {
	r := &Reservoir{values: make([]float64, 0, 2), cap: 2}
	assert.True(t, r.Add(1))
	assert.True(t, r.Add(2))
	assert.False(t, r.Add(3))
	assert.Equal(t, 2, r.Len())
}

func TestReservoir_ConcurrentAddIsSafe(t *testing.T) {
	r := NewReservoir()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.Add(float64(v))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, r.Len())
}

func TestReservoir_Reset(t *testing.T) {
	r := NewReservoir()
	r.Add(1)
	r.Add(2)
	r.Reset()
	assert.Equal(t, 0, r.Len())
}
