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

import "sync/atomic"

// Stats is a point-in-time snapshot of one cache's counters.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	DelHits       int64   `json:"delHits"`
	DelMisses     int64   `json:"delMisses"`
	Evictions     int64   `json:"evictions"`
	RequestsTotal int64   `json:"requestsTotal"`
	HitRatio      float64 `json:"hitRatio"`
}

// StatsTarget counts cache activity with atomics. Safe for concurrent use.
type StatsTarget struct {
	hits      atomic.Int64
	misses    atomic.Int64
	delHits   atomic.Int64
	delMisses atomic.Int64
	evictions atomic.Int64
}

func NewStatsTarget() *StatsTarget {
	return &StatsTarget{}
}

func (s *StatsTarget) IncrGetHit()      { s.hits.Add(1) }
func (s *StatsTarget) IncrGetMiss()     { s.misses.Add(1) }
func (s *StatsTarget) IncrDelHit()      { s.delHits.Add(1) }
func (s *StatsTarget) IncrDelNotFound() { s.delMisses.Add(1) }
func (s *StatsTarget) IncrEvict()       { s.evictions.Add(1) }

// Snapshot reads all counters. The counters keep advancing concurrently, so
// the ratio is computed from the values read here, not from live state.
func (s *StatsTarget) Snapshot() Stats {
	st := Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		DelHits:   s.delHits.Load(),
		DelMisses: s.delMisses.Load(),
		Evictions: s.evictions.Load(),
	}
	st.RequestsTotal = st.Hits + st.Misses
	if st.RequestsTotal > 0 {
		st.HitRatio = float64(st.Hits) / float64(st.RequestsTotal)
	}
	return st
}
