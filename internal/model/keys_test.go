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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationKey_EqualKeysHashEqual(t *testing.T) {
	a := OperationKey{Namespace: Namespace{Database: "appdb", Collection: "users"}, OpType: OpFind}
	b := OperationKey{Namespace: Namespace{Database: "appdb", Collection: "users"}, OpType: OpFind}
	assert.Equal(t, a, b)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestOperationKey_DistinctOpTypesHashDiffer(t *testing.T) {
	ns := Namespace{Database: "appdb", Collection: "users"}
	find := OperationKey{Namespace: ns, OpType: OpFind}
	insert := OperationKey{Namespace: ns, OpType: OpInsert}
	assert.NotEqual(t, find, insert)
	assert.NotEqual(t, find.Hash(), insert.Hash())
}

func TestHashParts_NoAmbiguousConcatenationCollision(t *testing.T) {
	h1 := hashParts("ab", "c")
	h2 := hashParts("a", "bc")
	assert.NotEqual(t, h1, h2)
}

func TestDriverKey_Hash(t *testing.T) {
	a := DriverKey{DriverName: "driver-x", DriverVersion: "1.2.3", OSType: "linux", Username: "alice"}
	b := DriverKey{DriverName: "driver-x", DriverVersion: "1.2.3", OSType: "linux", Username: "alice"}
	assert.Equal(t, a.Hash(), b.Hash())
}
