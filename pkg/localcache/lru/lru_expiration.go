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

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NewExpirationLRU builds an LRU that expires entries with a background
// sweeper instead of checking deadlines on access. Prefer it for caches that
// hold large values, where letting dead entries linger until touched would
// waste memory.
func NewExpirationLRU[K comparable, V any](size int, ttl time.Duration, target Target, onEvict EvictCallback[K, V]) LRU[K, V] {
	var cb expirable.EvictCallback[K, V]
	if onEvict != nil {
		cb = expirable.EvictCallback[K, V](onEvict)
	}
	if ttl < 0 {
		ttl = 0 // expirable treats zero as no expiry
	}
	return &ExpirationLRU[K, V]{
		core:   expirable.NewLRU[K, V](size, cb, ttl),
		target: target,
	}
}

// ExpirationLRU wraps hashicorp's expirable.LRU, which runs its own cleanup
// goroutine.
type ExpirationLRU[K comparable, V any] struct {
	lock   sync.Mutex
	core   *expirable.LRU[K, V]
	target Target
}

func (x *ExpirationLRU[K, V]) Get(key K) (V, bool) {
	x.lock.Lock()
	v, ok := x.core.Get(key)
	x.lock.Unlock()
	if ok {
		x.target.IncrGetHit()
	} else {
		x.target.IncrGetMiss()
	}
	return v, ok
}

func (x *ExpirationLRU[K, V]) Set(key K, value V) {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.core.Add(key, value)
}

func (x *ExpirationLRU[K, V]) SetHas(key K, value V) bool {
	x.lock.Lock()
	defer x.lock.Unlock()
	if !x.core.Contains(key) {
		return false
	}
	x.core.Add(key, value)
	return true
}

func (x *ExpirationLRU[K, V]) Del(key K) bool {
	x.lock.Lock()
	ok := x.core.Remove(key)
	x.lock.Unlock()
	if ok {
		x.target.IncrDelHit()
	} else {
		x.target.IncrDelNotFound()
	}
	return ok
}

func (x *ExpirationLRU[K, V]) Len() int {
	x.lock.Lock()
	defer x.lock.Unlock()
	return x.core.Len()
}

// Stop is a no-op, expirable.LRU manages its sweeper itself.
func (x *ExpirationLRU[K, V]) Stop() {}
