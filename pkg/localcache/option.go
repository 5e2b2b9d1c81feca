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

package localcache

import (
	"time"

	"github.com/vevoly/multicache/pkg/localcache/lru"
)

func defaultOption() *option {
	return &option{
		slotNum:         8,
		capacity:        1000,
		ttl:             time.Second * 30,
		expirationEvict: false,
		target:          lru.EmptyTarget{},
	}
}

type option struct {
	slotNum  int
	capacity int // total entries across all slots

	// expirationEvict selects the expiry model:
	// true runs a background sweeper, false checks deadlines on access.
	expirationEvict bool

	ttl     time.Duration
	target  lru.Target
	onEvict lru.EvictCallback[string, any]
}

type Option func(o *option)

// WithExpirationEvict enables timer-driven expiry.
func WithExpirationEvict() Option {
	return func(o *option) {
		o.expirationEvict = true
	}
}

// WithLazy enables on-access expiry (the default).
func WithLazy() Option {
	return func(o *option) {
		o.expirationEvict = false
	}
}

// WithSlotNum sets how many independent LRU shards back the cache. More
// slots mean less lock contention at a small memory cost.
func WithSlotNum(slotNum int) Option {
	if slotNum < 1 {
		panic("slotNum should be greater than 0")
	}
	return func(o *option) {
		o.slotNum = slotNum
	}
}

// WithCapacity sets the total entry capacity, spread evenly over the slots.
func WithCapacity(capacity int) Option {
	if capacity < 1 {
		panic("capacity should be greater than 0")
	}
	return func(o *option) {
		o.capacity = capacity
	}
}

// WithTTL sets how long entries live. Zero or negative disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *option) {
		o.ttl = ttl
	}
}

// WithTarget sets the statistics collector.
func WithTarget(target lru.Target) Option {
	if target == nil {
		panic("target should not be nil")
	}
	return func(o *option) {
		o.target = target
	}
}

// WithEvictCallback registers fn to run whenever an entry leaves the cache.
func WithEvictCallback(fn lru.EvictCallback[string, any]) Option {
	return func(o *option) {
		o.onEvict = fn
	}
}
