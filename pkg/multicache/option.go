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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vevoly/multicache/pkg/config"
)

func defaultOptions() *options {
	return &options{
		lockWait:       time.Second * 5,
		lockLease:      time.Second * 10,
		batchLockWait:  time.Second * 10,
		batchLockLease: time.Second * 20,
		followerRetry:  time.Millisecond * 200,
		evictTopic:     config.EvictTopic,
		asyncWorkers:   16,
	}
}

type options struct {
	// lockWait/lockLease guard single-key loads; the batch variants guard
	// multi-identifier loads, which hold the source of truth longer.
	lockWait       time.Duration
	lockLease      time.Duration
	batchLockWait  time.Duration
	batchLockLease time.Duration

	// followerRetry is how long a lock loser sleeps before its one re-read.
	followerRetry time.Duration

	evictTopic   string
	asyncWorkers int
	promRegistry prometheus.Registerer
}

type Option func(o *options)

// WithLockTimings overrides the single-key lock wait and lease.
func WithLockTimings(wait, lease time.Duration) Option {
	return func(o *options) {
		o.lockWait = wait
		o.lockLease = lease
	}
}

// WithBatchLockTimings overrides the batch lock wait and lease.
func WithBatchLockTimings(wait, lease time.Duration) Option {
	return func(o *options) {
		o.batchLockWait = wait
		o.batchLockLease = lease
	}
}

// WithFollowerRetry overrides the follower's sleep before its single
// re-read of the cache tier.
func WithFollowerRetry(d time.Duration) Option {
	return func(o *options) {
		o.followerRetry = d
	}
}

// WithEvictTopic overrides the pub/sub channel invalidations travel on.
func WithEvictTopic(topic string) Option {
	return func(o *options) {
		o.evictTopic = topic
	}
}

// WithAsyncWorkers bounds the pool that performs background tier
// promotion.
func WithAsyncWorkers(n int) Option {
	if n < 1 {
		panic("asyncWorkers should be greater than 0")
	}
	return func(o *options) {
		o.asyncWorkers = n
	}
}

// WithPrometheus exports per-cache local-tier counters on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.promRegistry = reg
	}
}
