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
	"hash/fnv"
	"unsafe"

	"github.com/vevoly/multicache/pkg/localcache/lru"
)

// Target aliases the lru stats collector so callers need not import the
// lru subpackage.
type Target = lru.Target

// Cache is the in-process tier for one cache namespace. It is a pure store:
// a miss returns false and the caller decides where to load from next.
type Cache[V any] interface {
	// Get returns the cached value for key, reporting false on a miss.
	Get(key string) (V, bool)

	// Set stores value under key with the configured TTL.
	Set(key string, value V)

	// SetHas updates key only if it is already cached.
	SetHas(key string, value V) bool

	// Del removes key, reporting whether it was present.
	Del(key string) bool

	// Len returns the number of entries currently held.
	Len() int

	// Stop releases background resources.
	Stop()
}

// LRUStringHash maps a key to a slot using FNV-1a. The unsafe conversion
// avoids copying the string into a byte slice.
func LRUStringHash(key string) uint64 {
	h := fnv.New64a()
	h.Write(*(*[]byte)(unsafe.Pointer(&key)))
	return h.Sum64()
}

// New builds a slot-sharded local cache from the given options.
func New[V any](opts ...Option) Cache[V] {
	opt := defaultOption()
	for _, o := range opts {
		o(opt)
	}

	slotSize := opt.capacity / opt.slotNum
	if slotSize < 1 {
		slotSize = 1
	}
	createSlot := func() lru.LRU[string, V] {
		// Counts every removal from the store, explicit deletes included.
		onEvict := func(key string, value V) {
			opt.target.IncrEvict()
			if opt.onEvict != nil {
				opt.onEvict(key, value)
			}
		}
		if opt.expirationEvict {
			return lru.NewExpirationLRU[string, V](slotSize, opt.ttl, opt.target, onEvict)
		}
		return lru.NewLayLRU[string, V](slotSize, opt.ttl, opt.target, onEvict)
	}

	var core lru.LRU[string, V]
	if opt.slotNum > 1 {
		core = lru.NewSlotLRU[string, V](opt.slotNum, LRUStringHash, createSlot)
	} else {
		core = createSlot()
	}
	return &cache[V]{core: core}
}

type cache[V any] struct {
	core lru.LRU[string, V]
}

func (c *cache[V]) Get(key string) (V, bool) {
	return c.core.Get(key)
}

func (c *cache[V]) Set(key string, value V) {
	c.core.Set(key, value)
}

func (c *cache[V]) SetHas(key string, value V) bool {
	return c.core.SetHas(key, value)
}

func (c *cache[V]) Del(key string) bool {
	return c.core.Del(key)
}

func (c *cache[V]) Len() int {
	return c.core.Len()
}

func (c *cache[V]) Stop() {
	c.core.Stop()
}
