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

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type layLruItem[V any] struct {
	value   V
	expires int64 // unix milliseconds, 0 means never
}

// NewLayLRU builds an LRU with lazy expiration: no timer runs, entries are
// checked against their deadline on access and purged only then or when
// capacity pushes them out. That keeps idle caches free of background work
// at the cost of expired entries lingering until touched.
func NewLayLRU[K comparable, V any](size int, ttl time.Duration, target Target, onEvict EvictCallback[K, V]) *LayLRU[K, V] {
	var cb simplelru.EvictCallback[K, *layLruItem[V]]
	if onEvict != nil {
		cb = func(key K, item *layLruItem[V]) {
			onEvict(key, item.value)
		}
	}
	core, err := simplelru.NewLRU[K, *layLruItem[V]](size, cb)
	if err != nil {
		panic(err)
	}
	return &LayLRU[K, V]{
		core:   core,
		ttl:    ttl,
		target: target,
	}
}

type LayLRU[K comparable, V any] struct {
	lock   sync.Mutex
	core   *simplelru.LRU[K, *layLruItem[V]]
	ttl    time.Duration
	target Target
}

func (x *LayLRU[K, V]) deadline() int64 {
	if x.ttl <= 0 {
		return 0
	}
	return time.Now().Add(x.ttl).UnixMilli()
}

func (x *LayLRU[K, V]) Get(key K) (V, bool) {
	x.lock.Lock()
	item, ok := x.core.Get(key)
	if ok && item.expires != 0 && item.expires <= time.Now().UnixMilli() {
		x.core.Remove(key)
		ok = false
	}
	x.lock.Unlock()
	if !ok {
		x.target.IncrGetMiss()
		var zero V
		return zero, false
	}
	x.target.IncrGetHit()
	return item.value, true
}

func (x *LayLRU[K, V]) Set(key K, value V) {
	x.lock.Lock()
	defer x.lock.Unlock()
	x.core.Add(key, &layLruItem[V]{value: value, expires: x.deadline()})
}

func (x *LayLRU[K, V]) SetHas(key K, value V) bool {
	x.lock.Lock()
	defer x.lock.Unlock()
	if !x.core.Contains(key) {
		return false
	}
	x.core.Add(key, &layLruItem[V]{value: value, expires: x.deadline()})
	return true
}

func (x *LayLRU[K, V]) Del(key K) bool {
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

func (x *LayLRU[K, V]) Len() int {
	x.lock.Lock()
	defer x.lock.Unlock()
	return x.core.Len()
}

func (x *LayLRU[K, V]) Stop() {}
