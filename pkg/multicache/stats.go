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

package multicache

import (
	"sort"

	"github.com/vevoly/multicache/pkg/localcache"
)

// CacheStats is the admin view of one cache's local tier.
type CacheStats struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	localcache.Stats
}

// Stats snapshots every local tier that has been touched so far, sorted by
// cache name.
func (e *Engine) Stats() []CacheStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]CacheStats, 0, len(e.locals))
	for name, tier := range e.locals {
		out = append(out, CacheStats{
			Name:  name,
			Size:  tier.cache.Len(),
			Stats: tier.stats.Snapshot(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StatsFor snapshots one cache's local tier. The second return is false
// when the cache has not been used yet.
func (e *Engine) StatsFor(cacheName string) (CacheStats, bool) {
	e.mu.RLock()
	tier, ok := e.locals[cacheName]
	e.mu.RUnlock()
	if !ok {
		return CacheStats{}, false
	}
	return CacheStats{
		Name:  cacheName,
		Size:  tier.cache.Len(),
		Stats: tier.stats.Snapshot(),
	}, true
}
