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

// Package multicache orchestrates the read-through cache cascade: an
// in-process LRU tier, a shared Redis tier, and the caller's source of
// truth, with distributed stampede control and cross-process invalidation.
package multicache

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/openimsdk/tools/log"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/localcache"
	"github.com/vevoly/multicache/pkg/rediscache"
	"github.com/vevoly/multicache/pkg/strategy"
)

// Loader fetches one value from the source of truth. A nil result with a
// nil error means the value does not exist and gets sentinel-cached.
type Loader func(ctx context.Context) (any, error)

// BatchLoader fetches many values by identifier. It may return either a
// map keyed by business key or a slice of entities; the engine normalizes
// both forms. Identifiers absent from the result are sentinel-cached.
type BatchLoader func(ctx context.Context, missing []string) (any, error)

// Engine coordinates the tiers for every configured cache. One Engine per
// process; it is safe for concurrent use.
type Engine struct {
	cli      *rediscache.Client
	locker   *rediscache.Locker
	resolver *config.Resolver
	registry *strategy.Registry
	opts     *options

	// instanceID stamps outgoing invalidation messages so the publisher
	// can skip its own broadcast.
	instanceID string

	mu     sync.RWMutex
	locals map[string]*localTier

	asyncSem chan struct{}
	wg       sync.WaitGroup
}

type localTier struct {
	cache localcache.Cache[any]
	stats *localcache.StatsTarget
}

// New builds an Engine. cli and locker may be nil only if no configured
// cache enables the Redis tier.
func New(cli *rediscache.Client, locker *rediscache.Locker, resolver *config.Resolver, registry *strategy.Registry, opts ...Option) *Engine {
	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}
	return &Engine{
		cli:        cli,
		locker:     locker,
		resolver:   resolver,
		registry:   registry,
		opts:       opt,
		instanceID: uuid.NewString(),
		locals:     make(map[string]*localTier),
		asyncSem:   make(chan struct{}, opt.asyncWorkers),
	}
}

// InstanceID returns the UUID this engine stamps on invalidation messages.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// Close stops the local tiers and waits for in-flight async promotions.
func (e *Engine) Close() {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tier := range e.locals {
		tier.cache.Stop()
	}
	e.locals = make(map[string]*localTier)
}

// local returns the lazily created L1 tier for cfg.
func (e *Engine) local(cfg *config.Resolved) *localTier {
	e.mu.RLock()
	tier, ok := e.locals[cfg.Name]
	e.mu.RUnlock()
	if ok {
		return tier
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tier, ok = e.locals[cfg.Name]; ok {
		return tier
	}
	stats := localcache.NewStatsTarget()
	target := localcache.Target(stats)
	if e.opts.promRegistry != nil {
		target = localcache.NewPrometheusTarget(e.opts.promRegistry, cfg.Name, stats)
	}
	cacheOpts := []localcache.Option{
		localcache.WithCapacity(cfg.LocalMaxSize),
		localcache.WithTTL(cfg.LocalTTL),
		localcache.WithTarget(target),
	}
	tier = &localTier{cache: localcache.New[any](cacheOpts...), stats: stats}
	e.locals[cfg.Name] = tier
	return tier
}

// async runs fn on the bounded promotion pool. When the pool is saturated
// the work is dropped: tier promotion is best effort and must never add
// latency to the request path.
func (e *Engine) async(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	select {
	case e.asyncSem <- struct{}{}:
		e.wg.Add(1)
		go func() {
			defer func() {
				<-e.asyncSem
				e.wg.Done()
			}()
			fn(ctx)
		}()
	default:
		log.ZDebug(ctx, "async pool saturated, dropping promotion")
	}
}

// resolve looks up config and strategy for a named cache.
func (e *Engine) resolve(cacheName string) (*config.Resolved, strategy.Strategy, error) {
	cfg, err := e.resolver.Resolve(cacheName)
	if err != nil {
		return nil, nil, err
	}
	strat, err := e.registry.Get(cfg.Shape)
	if err != nil {
		return nil, nil, err
	}
	return cfg, strat, nil
}
