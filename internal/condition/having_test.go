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

package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/accumulator"
)

func TestNewHavingFilter_FiltersByCount(t *testing.T) {
	f, err := NewHavingFilter(`count >= 2`)
	require.NoError(t, err)

	assert.True(t, f(accumulator.BreakdownEntry{Cause: "committed", Count: 3}))
	assert.False(t, f(accumulator.BreakdownEntry{Cause: "aborted", Count: 1}))
}

func TestNewHavingFilter_FiltersByCause(t *testing.T) {
	f, err := NewHavingFilter(`cause == "committed"`)
	require.NoError(t, err)

	assert.True(t, f(accumulator.BreakdownEntry{Cause: "committed"}))
	assert.False(t, f(accumulator.BreakdownEntry{Cause: "aborted"}))
}
