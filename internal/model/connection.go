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

import "time"

// ConnectionInfo is the transient, connection-join-only state correlating
// the metadata/auth/lifetime event streams for one connection id. At most
// one instance exists per connection id at any instant (§3, §8).
type ConnectionInfo struct {
	ConnID int64

	Username    string
	HasUsername bool

	StartTimestamp time.Time
	HasStart       bool

	DriverKey    DriverKey
	HasDriverKey bool

	// RemoteHost is the peer address from the metadata event, kept so a
	// later rekey (§8 scenario 4's metadata-before-auth ordering) can move
	// the same host into the driver entry's new key.
	RemoteHost string

	LastTouched time.Time

	// SampledForLifetime is decided once, at creation, with probability p;
	// only sampled connections contribute to lifetime statistics.
	SampledForLifetime bool

	// SampleAuthMessage caps retention at one sample auth message per
	// connection, per §9.
	SampleAuthMessage string
	HasSampleAuth     bool
}
