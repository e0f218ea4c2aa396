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
	"sync"

	"github.com/google/uuid"
)

// SampleStore holds at most one raw line per handle, for the "worst-case
// exemplar" every accumulator entry keeps (§3, §9). It is owned by a single
// pipeline run and discarded with it; nothing outside this package and the
// rendering callers that hold a handle ever sees a raw line.
type SampleStore struct {
	mu   sync.RWMutex
	byID map[string]string
}

// NewSampleStore creates an empty store.
func NewSampleStore() *SampleStore {
	return &SampleStore{byID: make(map[string]string)}
}

// Put retains line and returns an opaque handle to it.
func (s *SampleStore) Put(line string) SampleHandle {
	id := uuid.NewString()
	s.mu.Lock()
	s.byID[id] = line
	s.mu.Unlock()
	return SampleHandle{id: id, valid: true}
}

// Get resolves a handle back to its line. Returns false for a zero handle
// or one the store never retained (e.g. from a different run).
func (s *SampleStore) Get(h SampleHandle) (string, bool) {
	if !h.valid {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.byID[h.id]
	return line, ok
}

// Discard drops a previously retained line, used when an entry's
// sample-log pointer is replaced by a new exemplar.
func (s *SampleStore) Discard(h SampleHandle) {
	if !h.valid {
		return
	}
	s.mu.Lock()
	delete(s.byID, h.id)
	s.mu.Unlock()
}
