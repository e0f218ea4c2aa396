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
)

func TestExprCondition_BasicBoolean(t *testing.T) {
	c, err := NewExprCondition(`drop && count >= 3`)
	require.NoError(t, err)

	assert.True(t, c.Evaluate(map[string]interface{}{"drop": true, "count": 5}))
	assert.False(t, c.Evaluate(map[string]interface{}{"drop": true, "count": 1}))
	assert.False(t, c.Evaluate(map[string]interface{}{"drop": false, "count": 5}))
}

func TestExprCondition_IsNullIsNotNull(t *testing.T) {
	c, err := NewExprCondition(`is_null(appName)`)
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]interface{}{"appName": nil}))
	assert.False(t, c.Evaluate(map[string]interface{}{"appName": "mongosh"}))

	c2, err := NewExprCondition(`is_not_null(appName)`)
	require.NoError(t, err)
	assert.True(t, c2.Evaluate(map[string]interface{}{"appName": "mongosh"}))
}

func TestExprCondition_UndefinedVariableDoesNotError(t *testing.T) {
	c, err := NewExprCondition(`missingVar == nil`)
	require.NoError(t, err)
	assert.True(t, c.Evaluate(map[string]interface{}{}))
}

func TestExprCondition_CompileError(t *testing.T) {
	_, err := NewExprCondition(`this is not valid (((`)
	assert.Error(t, err)
}

func TestExprCondition_NonBooleanResultFailsToCompile(t *testing.T) {
	// expr.AsBool() forces a compile-time type check; an expression that
	// can't statically resolve to bool fails to compile rather than
	// running and returning something non-boolean.
	_, err := NewExprCondition(`"not a bool"`)
	assert.Error(t, err)
}
