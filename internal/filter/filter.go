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

// Package filter implements the line-level Filter (§4.1): a pure predicate
// deciding whether a raw log line is categorically uninteresting noise
// that must be dropped before the Field Extractor ever sees it.
package filter

import (
	"strings"

	"github.com/mongolyzer/mongolyzer/internal/condition"
)

// Verdict is the Filter's two-valued outcome.
type Verdict int

const (
	Admit Verdict = iota
	Drop
)

// defaultAllowlist is the always-admit set of operation-naming JSON-key
// tokens (§4.1 rule i). Each is checked as a `"token":` key form so a
// noise-class substring elsewhere in the line can never mask it.
var defaultAllowlist = []string{
	"find", "aggregate", "update", "insert", "delete",
	"findAndModify", "getMore", "count", "distinct",
}

// connEventMarkers are message substrings identifying the three connection-
// join event shapes (§4.2/§4.9). These never drop, independent of the
// allowlist and noise-pattern sets: "filter does not drop them" (§4) — the
// Field Extractor's connection path runs in parallel with the record path,
// not after it.
var connEventMarkers = []string{
	"client metadata",
	"Successfully authenticated",
	"Connection accepted",
	"Connection ended",
	"end connection",
}

// DefaultNoisePatterns is the documented default noise-pattern set (§6):
// component tags, health-check verbs, session-management commands,
// replication heartbeats, administrative commands, and internal
// namespaces.
var DefaultNoisePatterns = []string{
	// component tags
	"\"c\":\"NETWORK\"", "\"c\":\"ACCESS\"", "\"c\":\"CONNPOOL\"",
	"\"c\":\"STORAGE\"", "\"c\":\"CONTROL\"", "\"c\":\"SHARDING\"",
	// health checks
	"\"hello\":", "\"isMaster\":", "\"ismaster\":", "\"ping\":",
	// session management
	"\"endSessions\":", "\"startSession\":", "\"saslContinue\":", "\"saslStart\":",
	// replication heartbeats
	"replSetHeartbeat", "replSetUpdatePosition",
	// administrative / status commands
	"\"serverStatus\":", "\"getCmdLineOpts\":", "\"getParameter\":",
	"\"buildInfo\":", "logRotate", "\"getDefaultRWConcern\":",
	"\"listDatabases\":", "\"dbStats\":", "\"collStats\":", "\"listIndexes\":",
	// internal namespaces
	"local.oplog.rs", "local.clustermanager",
	"config.system.sessions", "config.mongos",
}

// Config configures a Filter. The zero value is usable and behaves exactly
// like spec.md's documented defaults.
type Config struct {
	// Patterns, if non-empty, replaces DefaultNoisePatterns wholesale
	// (§6 filter.ignore.patterns). Applied before Add/Remove.
	Patterns []string
	// Add appends additional noise substrings (§6 filter.ignore.add).
	Add []string
	// Remove deletes substrings from the resulting set
	// (§6 filter.ignore.remove). Applied last, so replace, then union,
	// then difference, exactly the three orthogonal operations SPEC_FULL
	// §9/Design Notes call for.
	Remove []string
	// AdmitOverride is an optional expr-lang boolean expression compiled
	// once at construction (SPEC_FULL §4.1 [ADD]). It is evaluated against
	// {"line": string, "drop": bool} and OR'd with the allowlist rule, so
	// it can only ever rescue a line from being dropped, never force-drop
	// an allow-listed one.
	AdmitOverride string
}

// Filter is the line-level classifier. It is safe for concurrent use by
// many worker goroutines: Classify touches no mutable state.
type Filter struct {
	noise     []string
	allowlist []string
	override  condition.Condition
}

// New builds a Filter from cfg, merging the noise-pattern set per §9's
// replace/union/difference ordering.
func New(cfg Config) (*Filter, error) {
	base := DefaultNoisePatterns
	if len(cfg.Patterns) > 0 {
		base = cfg.Patterns
	}
	merged := make([]string, 0, len(base)+len(cfg.Add))
	merged = append(merged, base...)
	merged = append(merged, cfg.Add...)

	if len(cfg.Remove) > 0 {
		removeSet := make(map[string]struct{}, len(cfg.Remove))
		for _, r := range cfg.Remove {
			removeSet[r] = struct{}{}
		}
		kept := merged[:0:0]
		for _, p := range merged {
			if _, drop := removeSet[p]; !drop {
				kept = append(kept, p)
			}
		}
		merged = kept
	}

	f := &Filter{
		noise:     merged,
		allowlist: defaultAllowlist,
	}

	if cfg.AdmitOverride != "" {
		c, err := condition.NewExprCondition(cfg.AdmitOverride)
		if err != nil {
			return nil, err
		}
		f.override = c
	}

	return f, nil
}

// Classify applies the two ordered tests from §4.1 and returns Admit or
// Drop. A zero-length line is always Drop.
func (f *Filter) Classify(line []byte) Verdict {
	if len(line) == 0 {
		return Drop
	}
	s := string(line)

	if f.admitsByAllowlist(s) || f.isConnEvent(s) {
		return Admit
	}

	drop := f.matchesNoise(s)
	if drop && f.override != nil {
		if f.override.Evaluate(map[string]interface{}{"line": s, "drop": drop}) {
			return Admit
		}
	}
	if drop {
		return Drop
	}
	return Admit
}

func (f *Filter) admitsByAllowlist(s string) bool {
	for _, verb := range f.allowlist {
		if strings.Contains(s, "\""+verb+"\":") {
			return true
		}
	}
	return false
}

func (f *Filter) isConnEvent(s string) bool {
	for _, marker := range connEventMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (f *Filter) matchesNoise(s string) bool {
	for _, p := range f.noise {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
