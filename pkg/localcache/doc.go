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

// Package localcache is the in-process tier of the multi-level cache.
//
// Each cache namespace gets its own slot-sharded LRU store with a fixed
// capacity and TTL. The store is deliberately passive: lookups report hit or
// miss and never load data themselves, the orchestration engine owns the
// cascade to Redis and the source of truth. Statistics flow through the
// lru.Target interface, with StatsTarget for snapshot reads and
// PrometheusTarget for metric export.
package localcache // import "github.com/vevoly/multicache/pkg/localcache"
