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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_EmptyLineDrops(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, Drop, f.Classify(nil))
	assert.Equal(t, Drop, f.Classify([]byte{}))
}

func TestClassify_AllowlistRescuesNoise(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	// scenario 5: a line carrying both the NETWORK tag and a find token.
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"NETWORK","msg":"slow query","attr":{"command":{"find":"users"}}}`)
	assert.Equal(t, Admit, f.Classify(line))
}

func TestClassify_NoiseDropsWithoutAllowlistHit(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"NETWORK","msg":"connection accepted"}`)
	assert.Equal(t, Drop, f.Classify(line))
}

func TestClassify_DefaultAdmitsOrdinaryLine(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	line := []byte(`{"t":{"$date":"2024-01-01T00:00:00Z"},"c":"COMMAND","msg":"Slow query","attr":{"command":{"find":"users"}}}`)
	assert.Equal(t, Admit, f.Classify(line))
}

func TestClassify_PatternsReplaceDefaults(t *testing.T) {
	f, err := New(Config{Patterns: []string{"custom-noise"}})
	require.NoError(t, err)
	assert.Equal(t, Drop, f.Classify([]byte("this line has custom-noise in it")))
	// A default-set pattern no longer applies since Patterns replaced it.
	assert.Equal(t, Admit, f.Classify([]byte(`{"c":"NETWORK","msg":"connection accepted"}`)))
}

func TestClassify_AddAndRemoveAreAdditiveSubtractive(t *testing.T) {
	f, err := New(Config{
		Add:    []string{"my-extra-noise"},
		Remove: []string{"\"c\":\"NETWORK\""},
	})
	require.NoError(t, err)
	assert.Equal(t, Drop, f.Classify([]byte("line with my-extra-noise present")))
	// NETWORK tag was removed from the noise set, so this line now admits.
	assert.Equal(t, Admit, f.Classify([]byte(`{"c":"NETWORK","msg":"connection accepted"}`)))
}

func TestClassify_AdmitOverrideOnlyRescues(t *testing.T) {
	f, err := New(Config{AdmitOverride: `drop && line contains "rescue-me"`})
	require.NoError(t, err)
	line := []byte(`{"c":"NETWORK","msg":"connection accepted","rescue-me":true}`)
	assert.Equal(t, Admit, f.Classify(line))

	other := []byte(`{"c":"NETWORK","msg":"connection accepted"}`)
	assert.Equal(t, Drop, f.Classify(other))
}

func TestClassify_ConnectionEventsNeverDrop(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	// Connection events carry the NETWORK/ACCESS noise tags but must never
	// drop: the Field Extractor's connection path runs in parallel with the
	// noise filter, not after it.
	lines := []string{
		`{"c":"NETWORK","msg":"client metadata","ctx":"conn1"}`,
		`{"c":"ACCESS","msg":"Successfully authenticated","ctx":"conn1"}`,
		`{"c":"NETWORK","msg":"Connection accepted","ctx":"conn1"}`,
		`{"c":"NETWORK","msg":"Connection ended","ctx":"conn1"}`,
	}
	for _, line := range lines {
		assert.Equal(t, Admit, f.Classify([]byte(line)), line)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)
	line := []byte(`{"c":"ACCESS","msg":"Successfully authenticated"}`)
	first := f.Classify(line)
	second := f.Classify(line)
	assert.Equal(t, first, second)
}
