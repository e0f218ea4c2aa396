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
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// DecodeInt64 is the single choke point every numeric field read goes
// through. A field may arrive as a bare JSON number or as a typed wrapper
// ({"$numberLong": "1234"}); both are accepted transparently, per §6.
func DecodeInt64(v gjson.Result) (int64, bool) {
	if !v.Exists() {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		if n, err := cast.ToInt64E(v.Str); err == nil {
			return n, true
		}
		return 0, false
	case gjson.JSON:
		if wrapped := v.Get("$numberLong"); wrapped.Exists() {
			if n, err := cast.ToInt64E(wrapped.String()); err == nil {
				return n, true
			}
		}
		if wrapped := v.Get("$numberInt"); wrapped.Exists() {
			if n, err := cast.ToInt64E(wrapped.String()); err == nil {
				return n, true
			}
		}
		if wrapped := v.Get("$numberDouble"); wrapped.Exists() {
			if n, err := cast.ToInt64E(wrapped.String()); err == nil {
				return n, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// FirstPresent returns the first of the given gjson paths (looked up in
// order against root) that exists, honoring §4.2's documented fallback
// order for storage.bytesRead / storage.data.bytesRead and their
// bytesWritten counterparts.
func FirstPresent(root gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := root.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// SampleHandle is an opaque handle to a retained raw sample line. Rendering
// callers receive this handle, never the line itself (§9).
type SampleHandle struct {
	id    string
	valid bool
}

// Valid reports whether the handle refers to a retained sample.
func (h SampleHandle) Valid() bool { return h.valid }

// ID returns the handle's opaque identifier, or "" if invalid.
func (h SampleHandle) ID() string { return h.id }
