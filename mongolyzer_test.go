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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongolyzer/mongolyzer/internal/model"
)

type sliceSource struct {
	name string
	data [][]byte
}

func (s *sliceSource) Name() string { return s.name }

func (s *sliceSource) Lines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error)
	go func() {
		defer close(lines)
		defer close(errs)
		for _, l := range s.data {
			select {
			case lines <- l:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines, errs
}

func TestMongolyzer_DefaultAccumulatorsEnabled(t *testing.T) {
	m := New()
	src := &sliceSource{name: "fixture", data: [][]byte{
		[]byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"ns":"appdb.users","command":{"find":"users"},"durationMillis":42}}`),
	}}

	diag, err := m.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), diag.FoundOps)

	require.NotNil(t, m.Operation())
	report, ok := m.Operation().Report(model.OperationKey{
		Namespace: model.Namespace{Database: "appdb", Collection: "users"},
		OpType:    model.OpFind,
	})
	require.True(t, ok)
	assert.Equal(t, int64(1), report.Count)

	assert.NotNil(t, m.Connections())
	assert.NotNil(t, m.PlanCache())
	assert.NotNil(t, m.QueryHash())
	assert.NotNil(t, m.Transaction())
	assert.NotNil(t, m.ErrorCode())
	assert.NotNil(t, m.IndexUsage())
}

func TestMongolyzer_WithoutConnectionJoinDisablesIt(t *testing.T) {
	m := New(WithoutConnectionJoin(), WithoutPlanCache())
	_, err := m.Run(context.Background(), &sliceSource{name: "empty"})
	require.NoError(t, err)
	assert.Nil(t, m.Connections())
	assert.Nil(t, m.PlanCache())
}

func TestMongolyzer_DiagnosticsBeforeRunIsZeroValue(t *testing.T) {
	m := New()
	d := m.Diagnostics()
	assert.Equal(t, int64(0), d.FoundOps)
}
