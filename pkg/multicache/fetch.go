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
	"errors"
	"time"

	"github.com/openimsdk/tools/log"

	"github.com/vevoly/multicache/pkg/cachekey"
	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/strategy"
)

// Fetch resolves one value through the cascade: L1, then Redis, then the
// loader under distributed stampede control. A nil result means the value
// is confirmed absent.
func (e *Engine) Fetch(ctx context.Context, cacheName string, parts []string, loader Loader) (any, error) {
	cfg, strat, err := e.resolve(cacheName)
	if err != nil {
		return nil, err
	}
	fullKey := cachekey.BuildKey(cfg.Namespace, parts...)

	if cfg.UseL1() {
		if v, ok := e.local(cfg).cache.Get(fullKey); ok {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			return v, nil
		}
	}

	if cfg.UseL2() {
		v, hit, err := e.readL2(ctx, strat, fullKey, cfg)
		if err != nil {
			return nil, err
		}
		if hit {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				e.promoteL1(ctx, cfg, fullKey, cfg.EmptyValueMark)
				return nil, nil
			}
			e.promoteL1(ctx, cfg, fullKey, v)
			return v, nil
		}
	}

	return e.loadWithLock(ctx, cfg, strat, fullKey, loader)
}

// isUsageError distinguishes shape and type misuse from tier I/O trouble.
// Misuse is a caller bug and must surface; I/O trouble degrades.
func isUsageError(err error) bool {
	return errors.Is(err, strategy.ErrUnsupportedOperation) || errors.Is(err, strategy.ErrNotScorable)
}

// readL2 reads one key from the Redis tier. Tier I/O errors degrade to a
// miss with a warning: an unreachable Redis must not take reads down with
// it. Usage errors propagate.
func (e *Engine) readL2(ctx context.Context, strat strategy.Strategy, fullKey string, cfg *config.Resolved) (any, bool, error) {
	v, err := strat.Read(ctx, e.cli, fullKey, cfg)
	if err != nil {
		if isUsageError(err) {
			return nil, false, err
		}
		log.ZWarn(ctx, "redis tier read degraded to miss", err, "key", fullKey)
		return nil, false, nil
	}
	return v, v != nil, nil
}

func (e *Engine) promoteL1(ctx context.Context, cfg *config.Resolved, fullKey string, v any) {
	if !cfg.PopulateL1FromL2() {
		return
	}
	tier := e.local(cfg)
	e.async(ctx, func(context.Context) {
		tier.cache.Set(fullKey, v)
	})
}

// loadWithLock elects one loader per key cluster-wide. The winner loads,
// write-throughs, and always releases; losers wait out one retry interval,
// re-read the cache tier a single time, and settle for absent rather than
// piling onto the source of truth.
func (e *Engine) loadWithLock(ctx context.Context, cfg *config.Resolved, strat strategy.Strategy, fullKey string, loader Loader) (any, error) {
	if e.locker == nil {
		return e.loadDirect(ctx, cfg, strat, fullKey, loader)
	}

	lock, acquired, err := e.locker.TryLock(ctx, cachekey.SingleLockKey(fullKey), e.opts.lockWait, e.opts.lockLease)
	if err != nil {
		log.ZWarn(ctx, "lock unavailable, loading directly", err, "key", fullKey)
		return e.loadDirect(ctx, cfg, strat, fullKey, loader)
	}
	if !acquired {
		return e.followerRead(ctx, cfg, strat, fullKey)
	}
	defer lock.Unlock(ctx)

	// The leader double-checks: a previous holder may have populated a
	// tier while this caller was queued on the lock. With no Redis tier
	// the local tier is the one to re-check.
	if cfg.UseL2() {
		v, hit, err := e.readL2(ctx, strat, fullKey, cfg)
		if err != nil {
			return nil, err
		}
		if hit {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				e.promoteL1(ctx, cfg, fullKey, cfg.EmptyValueMark)
				return nil, nil
			}
			e.promoteL1(ctx, cfg, fullKey, v)
			return v, nil
		}
	} else if cfg.UseL1() {
		if v, ok := e.local(cfg).cache.Get(fullKey); ok {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			return v, nil
		}
	}

	return e.loadDirect(ctx, cfg, strat, fullKey, loader)
}

// loadDirect calls the loader and write-throughs the result (or sentinel)
// to the enabled tiers. Loader and usage errors propagate untouched; tier
// I/O write failures only warn.
func (e *Engine) loadDirect(ctx context.Context, cfg *config.Resolved, strat strategy.Strategy, fullKey string, loader Loader) (any, error) {
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	v = normalizeNil(v)

	if cfg.UseL2() {
		if werr := strat.Write(ctx, e.cli, fullKey, v, cfg); werr != nil {
			if isUsageError(werr) {
				return nil, werr
			}
			log.ZWarn(ctx, "redis tier write failed", werr, "key", fullKey)
		}
	}
	if cfg.UseL1() {
		if v == nil {
			e.local(cfg).cache.Set(fullKey, cfg.EmptyValueMark)
		} else {
			e.local(cfg).cache.Set(fullKey, v)
		}
	}
	return v, nil
}

// followerRead is the lock loser's path: one sleep, one re-read, then
// absent. The single retry is deliberate; retrying in a loop would turn
// every stampede into a slow-motion one.
func (e *Engine) followerRead(ctx context.Context, cfg *config.Resolved, strat strategy.Strategy, fullKey string) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.opts.followerRetry):
	}

	if cfg.UseL2() {
		v, hit, err := e.readL2(ctx, strat, fullKey, cfg)
		if err != nil {
			return nil, err
		}
		if hit {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			e.promoteL1(ctx, cfg, fullKey, v)
			return v, nil
		}
		return nil, nil
	}
	if cfg.UseL1() {
		if v, ok := e.local(cfg).cache.Get(fullKey); ok && !strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
			return v, nil
		}
	}
	return nil, nil
}
