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

// Package pipeline implements the Pipeline Coordinator (§4.10): it drives
// one or more input sources through the Filter and Field Extractor and
// fans normalized records into every active accumulator, using a bounded
// worker pool.
package pipeline

import "context"

// Source is the external-collaborator seam (§6): a caller-supplied
// decompression selector, file opener, or network reader only needs to
// produce one of these. Nothing implementing it lives in this module.
type Source interface {
	Name() string
	Lines(ctx context.Context) (<-chan []byte, <-chan error)
}

// SourceError is returned when a single source could not be opened or read
// to completion (§7). Other sources proceed independently.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return "source " + e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

// State is a source's position in the §4.10 state machine.
type State int

const (
	Opened State = iota
	Reading
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Opened:
		return "opened"
	case Reading:
		return "reading"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
