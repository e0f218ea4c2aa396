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

// Package model holds the passive value types shared by the filter,
// extractor, accumulator, and connection-join packages: Namespace, OpType,
// OperationRecord, the AccumulatorKey variants, and ConnectionInfo.
package model

// Namespace is an ordered (database, collection) pair. Either component may
// be absent. Equality and hashing are structural, so two Namespace values
// built from the same strings are always equal and always land in the same
// accumulator bucket.
type Namespace struct {
	Database   string
	Collection string
}

// String renders the namespace the way server logs do: "db.coll", "db", or
// "" when both components are absent.
func (n Namespace) String() string {
	switch {
	case n.Database != "" && n.Collection != "":
		return n.Database + "." + n.Collection
	case n.Database != "":
		return n.Database
	default:
		return n.Collection
	}
}

// IsZero reports whether neither component was captured.
func (n Namespace) IsZero() bool {
	return n.Database == "" && n.Collection == ""
}

// SplitNamespace splits a server-provided "db.coll" string into its two
// components. A namespace with no dot is treated as database-only, which
// happens for database-level commands such as {"aggregate": 1}.
func SplitNamespace(ns string) Namespace {
	if ns == "" {
		return Namespace{}
	}
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return Namespace{Database: ns[:i], Collection: ns[i+1:]}
		}
	}
	return Namespace{Database: ns}
}
