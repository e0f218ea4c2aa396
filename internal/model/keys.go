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
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Each AccumulatorKey variant is a comparable struct of strings/int64s, so
// it is safe to use directly as a Go map key (equal keys are structurally
// equal) and Hash gives the concurrent-map shard function a stable,
// deterministic value — equal keys always hash equal, per §8.

// OperationKey groups by (namespace, op-type).
type OperationKey struct {
	Namespace Namespace
	OpType    OpType
}

func (k OperationKey) Hash() uint64 {
	return hashParts(k.Namespace.Database, k.Namespace.Collection, string(k.OpType))
}

// PlanCacheKey groups by (namespace, plan-cache-key, query-hash, plan-summary).
type PlanCacheKey struct {
	Namespace    Namespace
	PlanCacheKey string
	QueryHash    string
	PlanSummary  string
}

func (k PlanCacheKey) Hash() uint64 {
	return hashParts(k.Namespace.Database, k.Namespace.Collection, k.PlanCacheKey, k.QueryHash, k.PlanSummary)
}

// QueryHashKey groups by (namespace, op-type, query-hash, plan-summary).
type QueryHashKey struct {
	Namespace   Namespace
	OpType      OpType
	QueryHash   string
	PlanSummary string
}

func (k QueryHashKey) Hash() uint64 {
	return hashParts(k.Namespace.Database, k.Namespace.Collection, string(k.OpType), k.QueryHash, k.PlanSummary)
}

// TransactionKey groups by (retry-counter, termination-cause, commit-type).
type TransactionKey struct {
	RetryCounter     int64
	TerminationCause string
	CommitType       string
}

func (k TransactionKey) Hash() uint64 {
	return hashParts(strconv.FormatInt(k.RetryCounter, 10), k.TerminationCause, k.CommitType)
}

// ErrorKey groups by (code-name) alone.
type ErrorKey struct {
	CodeName string
}

func (k ErrorKey) Hash() uint64 {
	return hashParts(k.CodeName)
}

// IndexUsageKey groups by (namespace, plan-summary).
type IndexUsageKey struct {
	Namespace   Namespace
	PlanSummary string
}

func (k IndexUsageKey) Hash() uint64 {
	return hashParts(k.Namespace.Database, k.Namespace.Collection, k.PlanSummary)
}

// DriverKey groups by (driver-name, driver-version, os-type, platform,
// compressor-set, username).
type DriverKey struct {
	DriverName     string
	DriverVersion  string
	OSType         string
	Platform       string
	CompressorSet  string
	Username       string
}

func (k DriverKey) Hash() uint64 {
	return hashParts(k.DriverName, k.DriverVersion, k.OSType, k.Platform, k.CompressorSet, k.Username)
}

// hashParts builds a deterministic string encoding (each part length-
// prefixed so that ("ab","c") and ("a","bc") never collide) and hashes it
// with xxhash, the fast, stable hash the rest of the pack reaches for.
func hashParts(parts ...string) uint64 {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return xxhash.Sum64String(b.String())
}
