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
	"context"
	"time"

	"github.com/openimsdk/tools/log"
	"github.com/openimsdk/tools/utils/datautil"

	"github.com/vevoly/multicache/pkg/cachekey"
	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/strategy"
)

// KeyResolver maps an identifier to its cache key. The engine treats it as
// opaque and calls it exactly once per identifier per operation; the result
// is namespace-qualified if it is not already.
type KeyResolver func(id string) string

// batchState tracks one batch fetch in flight: which identifiers are
// settled and which still need a deeper tier.
type batchState struct {
	cfg     *config.Resolved
	result  map[string]any
	missing []string
	keyByID map[string]string
	idByKey map[string]string
}

func newBatchState(cfg *config.Resolved, ids []string, resolveKey KeyResolver) *batchState {
	ids = datautil.Distinct(ids)
	s := &batchState{
		cfg:     cfg,
		result:  make(map[string]any, len(ids)),
		missing: make([]string, 0, len(ids)),
		keyByID: make(map[string]string, len(ids)),
		idByKey: make(map[string]string, len(ids)),
	}
	for _, id := range ids {
		var key string
		if resolveKey != nil {
			key = cachekey.Normalize(cfg.Namespace, resolveKey(id))
		} else {
			key = cachekey.BuildKey(cfg.Namespace, id)
		}
		s.keyByID[id] = key
		s.idByKey[key] = id
		s.missing = append(s.missing, id)
	}
	return s
}

func (s *batchState) missingKeys() []string {
	keys := make([]string, len(s.missing))
	for i, id := range s.missing {
		keys[i] = s.keyByID[id]
	}
	return keys
}

// settle records tier results: hits land in the result map, sentinel hits
// are dropped entirely, everything else stays missing.
func (s *batchState) settle(hits map[string]Result) {
	if len(hits) == 0 {
		return
	}
	still := s.missing[:0]
	for _, id := range s.missing {
		r, ok := hits[s.keyByID[id]]
		switch {
		case !ok:
			still = append(still, id)
		case r.Empty:
			// confirmed absent, excluded from result and loader
		default:
			s.result[id] = r.Value
		}
	}
	s.missing = still
}

// Result re-exported for batch settling.
type Result = strategy.Result

// FetchBatch resolves many identifiers of one cache in bulk: L1 partition,
// one pipelined Redis read for the rest, then a single fingerprint-locked
// loader call for whatever neither tier had. The result maps business key
// to value; confirmed-absent identifiers are simply not present.
func (e *Engine) FetchBatch(ctx context.Context, cacheName string, ids []string, loader BatchLoader) (map[string]any, error) {
	return e.FetchBatchKeyed(ctx, cacheName, ids, nil, loader)
}

// FetchBatchKeyed is FetchBatch with a caller-supplied key resolver for
// caches whose keys are not derived from the identifier alone. A nil
// resolver falls back to the configured namespace + identifier.
func (e *Engine) FetchBatchKeyed(ctx context.Context, cacheName string, ids []string, resolveKey KeyResolver, loader BatchLoader) (map[string]any, error) {
	cfg, strat, err := e.resolve(cacheName)
	if err != nil {
		return nil, err
	}
	state := newBatchState(cfg, ids, resolveKey)
	if len(state.missing) == 0 {
		return state.result, nil
	}

	if cfg.UseL1() {
		state.settle(e.readManyL1(cfg, state))
	}

	if cfg.UseL2() && len(state.missing) > 0 {
		hits, err := e.readManyL2(ctx, strat, state, cfg, true)
		if err != nil {
			return nil, err
		}
		state.settle(hits)
	}

	if len(state.missing) == 0 {
		return state.result, nil
	}
	return e.loadBatchWithLock(ctx, cfg, strat, state, loader)
}

func (e *Engine) readManyL1(cfg *config.Resolved, state *batchState) map[string]Result {
	tier := e.local(cfg)
	hits := make(map[string]Result)
	for _, id := range state.missing {
		key := state.keyByID[id]
		if v, ok := tier.cache.Get(key); ok {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				hits[key] = Result{Empty: true}
			} else {
				hits[key] = Result{Value: v}
			}
		}
	}
	return hits
}

// readManyL2 reads the still-missing keys from Redis. Usage errors
// propagate; transport errors degrade the whole read to a miss.
func (e *Engine) readManyL2(ctx context.Context, strat strategy.Strategy, state *batchState, cfg *config.Resolved, promote bool) (map[string]Result, error) {
	hits, err := strat.ReadMany(ctx, e.cli, state.missingKeys(), cfg)
	if err != nil {
		if isUsageError(err) {
			return nil, err
		}
		log.ZWarn(ctx, "redis tier batch read degraded to miss", err, "cache", cfg.Name)
		return nil, nil
	}
	if promote && cfg.PopulateL1FromL2() {
		tier := e.local(cfg)
		promoted := make(map[string]any, len(hits))
		for key, r := range hits {
			if !r.Empty {
				promoted[key] = r.Value
			}
		}
		if len(promoted) > 0 {
			e.async(ctx, func(context.Context) {
				for key, v := range promoted {
					tier.cache.Set(key, v)
				}
			})
		}
	}
	return hits, nil
}

// loadBatchWithLock elects one loader for the whole missing set. The lock
// key fingerprints the sorted identifiers, so overlapping batches from
// different processes coordinate regardless of request order.
func (e *Engine) loadBatchWithLock(ctx context.Context, cfg *config.Resolved, strat strategy.Strategy, state *batchState, loader BatchLoader) (map[string]any, error) {
	if e.locker == nil {
		return e.loadBatchDirect(ctx, cfg, strat, state, loader)
	}

	lockKey := cachekey.BatchLockKey(cfg.Namespace, cachekey.Fingerprint(state.missing))
	lock, acquired, err := e.locker.TryLock(ctx, lockKey, e.opts.batchLockWait, e.opts.batchLockLease)
	if err != nil {
		log.ZWarn(ctx, "batch lock unavailable, loading directly", err, "cache", cfg.Name)
		return e.loadBatchDirect(ctx, cfg, strat, state, loader)
	}
	if !acquired {
		// Follower: one sleep, one re-read, the rest stays absent. The
		// re-read targets the local tier when no Redis tier is enabled.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.opts.followerRetry):
		}
		if !cfg.UseL2() {
			state.settle(e.readManyL1(cfg, state))
			return state.result, nil
		}
		hits, err := e.readManyL2(ctx, strat, state, cfg, false)
		if err != nil {
			return nil, err
		}
		state.settle(hits)
		return state.result, nil
	}
	defer lock.Unlock(ctx)

	// Double-check under the lock before hitting the source of truth.
	if cfg.UseL2() {
		hits, err := e.readManyL2(ctx, strat, state, cfg, true)
		if err != nil {
			return nil, err
		}
		state.settle(hits)
	} else {
		state.settle(e.readManyL1(cfg, state))
	}
	if len(state.missing) == 0 {
		return state.result, nil
	}
	return e.loadBatchDirect(ctx, cfg, strat, state, loader)
}

func (e *Engine) loadBatchDirect(ctx context.Context, cfg *config.Resolved, strat strategy.Strategy, state *batchState, loader BatchLoader) (map[string]any, error) {
	loaded, err := loader(ctx, append([]string(nil), state.missing...))
	if err != nil {
		return nil, err
	}
	byID, err := normalizeBatch(loaded, cfg.BatchKeyField())
	if err != nil {
		return nil, err
	}

	writeData := make(map[string]any)
	var sentinelKeys []string
	for _, id := range state.missing {
		key := state.keyByID[id]
		if v, ok := byID[id]; ok && v != nil {
			state.result[id] = v
			writeData[key] = v
		} else {
			sentinelKeys = append(sentinelKeys, key)
		}
	}
	state.missing = nil

	if cfg.UseL2() {
		b := e.cli.Batch()
		if err := strat.WriteMany(ctx, b, writeData, cfg); err != nil {
			log.ZWarn(ctx, "batch write-through skipped", err, "cache", cfg.Name)
		} else if err := strat.WriteManyEmpty(ctx, b, sentinelKeys, cfg); err != nil {
			log.ZWarn(ctx, "batch sentinel write skipped", err, "cache", cfg.Name)
		} else if err := b.Exec(ctx); err != nil {
			log.ZWarn(ctx, "batch write-through failed", err, "cache", cfg.Name)
		}
	}
	if cfg.UseL1() {
		tier := e.local(cfg)
		if cfg.UseL2() {
			if len(writeData) > 0 {
				e.async(ctx, func(context.Context) {
					for key, v := range writeData {
						tier.cache.Set(key, v)
					}
				})
			}
		} else {
			// Sole tier: write synchronously, sentinels included, so a
			// queued lock contender's re-read sees the outcome.
			for key, v := range writeData {
				tier.cache.Set(key, v)
			}
			for _, key := range sentinelKeys {
				tier.cache.Set(key, cfg.EmptyValueMark)
			}
		}
	}
	return state.result, nil
}
