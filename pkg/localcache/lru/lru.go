// Copyright © 2025 Vevoly. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lru

import "github.com/hashicorp/golang-lru/v2/simplelru"

// EvictCallback runs when an entry leaves the cache, either pushed out by
// capacity or removed explicitly.
type EvictCallback[K comparable, V any] simplelru.EvictCallback[K, V]

// LRU is the contract of one local-tier store. Get never loads anything:
// the local tier is a pure lookup structure and the caller decides what a
// miss means.
type LRU[K comparable, V any] interface {
	// Get returns the live value for key, reporting false on a miss or an
	// expired entry.
	Get(key K) (V, bool)

	// Set stores value under key with the configured TTL.
	Set(key K, value V)

	// SetHas updates key only if it is already present, reporting whether
	// it was.
	SetHas(key K, value V) bool

	// Del removes key, reporting whether it was present.
	Del(key K) bool

	// Len returns the number of entries currently held.
	Len() int

	// Stop releases timers and other background resources.
	Stop()
}

// Target collects cache statistics. Implementations must be safe for
// concurrent use.
type Target interface {
	IncrGetHit()
	IncrGetMiss()
	IncrDelHit()
	IncrDelNotFound()
	IncrEvict()
}

// EmptyTarget discards every metric.
type EmptyTarget struct{}

func (EmptyTarget) IncrGetHit()      {}
func (EmptyTarget) IncrGetMiss()     {}
func (EmptyTarget) IncrDelHit()      {}
func (EmptyTarget) IncrDelNotFound() {}
func (EmptyTarget) IncrEvict()       {}
