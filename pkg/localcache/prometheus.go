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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vevoly/multicache/pkg/localcache/lru"
)

// PrometheusTarget exports local-tier counters to a prometheus registry,
// labeled by cache name. It can wrap another Target so plain snapshot stats
// keep working alongside the exported metrics.
type PrometheusTarget struct {
	next lru.Target

	hits      prometheus.Counter
	misses    prometheus.Counter
	delHits   prometheus.Counter
	delMisses prometheus.Counter
	evictions prometheus.Counter
}

// NewPrometheusTarget registers counters for cacheName on reg. next may be
// nil.
func NewPrometheusTarget(reg prometheus.Registerer, cacheName string, next lru.Target) *PrometheusTarget {
	if next == nil {
		next = lru.EmptyTarget{}
	}
	labels := prometheus.Labels{"cache": cacheName}
	counter := func(name, help string) prometheus.Counter {
		return promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace:   "multicache",
			Subsystem:   "local",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	return &PrometheusTarget{
		next:      next,
		hits:      counter("hits_total", "Local tier lookups served from memory."),
		misses:    counter("misses_total", "Local tier lookups that fell through."),
		delHits:   counter("del_hits_total", "Deletes that removed a present entry."),
		delMisses: counter("del_misses_total", "Deletes of absent entries."),
		evictions: counter("evictions_total", "Entries pushed out by capacity or TTL."),
	}
}

func (p *PrometheusTarget) IncrGetHit() {
	p.hits.Inc()
	p.next.IncrGetHit()
}

func (p *PrometheusTarget) IncrGetMiss() {
	p.misses.Inc()
	p.next.IncrGetMiss()
}

func (p *PrometheusTarget) IncrDelHit() {
	p.delHits.Inc()
	p.next.IncrDelHit()
}

func (p *PrometheusTarget) IncrDelNotFound() {
	p.delMisses.Inc()
	p.next.IncrDelNotFound()
}

func (p *PrometheusTarget) IncrEvict() {
	p.evictions.Inc()
	p.next.IncrEvict()
}
