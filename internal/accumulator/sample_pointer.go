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

	"github.com/mongolyzer/mongolyzer/internal/model"
)

// samplePointer holds the single worst-case exemplar an accumulator entry
// retains. Update is last-writer-wins under a max-duration tiebreak: a race
// between two workers may keep a slightly-less-than-worst exemplar, which
// §5 calls out as acceptable.
type samplePointer struct {
	mu       sync.Mutex
	handle   model.SampleHandle
	duration int64
	set      bool
}

// offer replaces the held sample when duration exceeds (or no sample is
// held yet) the current exemplar's duration. The displaced sample, if any,
// is returned so the caller can discard it from the shared store.
func (p *samplePointer) offer(duration int64, handle model.SampleHandle) (evicted model.SampleHandle, evictedOK bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set || duration > p.duration {
		if p.set {
			evicted, evictedOK = p.handle, true
		}
		p.handle = handle
		p.duration = duration
		p.set = true
		return evicted, evictedOK
	}
	return model.SampleHandle{}, false
}

func (p *samplePointer) get() (model.SampleHandle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle, p.set
}
