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

	"github.com/vevoly/multicache/pkg/cachekey"
	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/strategy"
)

// FetchHashField resolves one field of a hash-shaped cache. The L1 entry
// lives under hashKey:field; the Redis read is a single HGET. An absent
// load result is returned as nil but never sentinel-cached: hash expiry is
// key-scoped, so a per-field sentinel could not carry its own empty TTL.
func (e *Engine) FetchHashField(ctx context.Context, cacheName string, parts []string, field string, loader Loader) (any, error) {
	cfg, strat, err := e.resolve(cacheName)
	if err != nil {
		return nil, err
	}
	fields, ok := strat.(strategy.FieldStrategy)
	if !ok {
		return nil, strategy.ErrUnsupportedOperation.WrapMsg("hash field fetch", "shape", cfg.Shape)
	}
	hashKey := cachekey.BuildKey(cfg.Namespace, parts...)
	localKey := cachekey.BuildKey(hashKey, field)

	if cfg.UseL1() {
		if v, ok := e.local(cfg).cache.Get(localKey); ok {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			return v, nil
		}
	}

	if cfg.UseL2() {
		v, hit := e.readField(ctx, fields, hashKey, field, cfg)
		if hit {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			e.promoteL1(ctx, cfg, localKey, v)
			return v, nil
		}
	}

	return e.loadFieldWithLock(ctx, cfg, fields, hashKey, field, localKey, loader)
}

func (e *Engine) readField(ctx context.Context, fields strategy.FieldStrategy, hashKey, field string, cfg *config.Resolved) (any, bool) {
	v, err := fields.ReadField(ctx, e.cli, hashKey, field, cfg)
	if err != nil {
		log.ZWarn(ctx, "redis field read degraded to miss", err, "key", hashKey, "field", field)
		return nil, false
	}
	return v, v != nil
}

func (e *Engine) loadFieldWithLock(ctx context.Context, cfg *config.Resolved, fields strategy.FieldStrategy, hashKey, field, localKey string, loader Loader) (any, error) {
	if e.locker == nil {
		return e.loadFieldDirect(ctx, cfg, fields, hashKey, field, localKey, loader)
	}

	lock, acquired, err := e.locker.TryLock(ctx, cachekey.SingleLockKey(localKey), e.opts.lockWait, e.opts.lockLease)
	if err != nil {
		log.ZWarn(ctx, "lock unavailable, loading field directly", err, "key", localKey)
		return e.loadFieldDirect(ctx, cfg, fields, hashKey, field, localKey, loader)
	}
	if !acquired {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.opts.followerRetry):
		}
		if cfg.UseL2() {
			if v, hit := e.readField(ctx, fields, hashKey, field, cfg); hit && !strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return v, nil
			}
			return nil, nil
		}
		if v, ok := e.local(cfg).cache.Get(localKey); ok && !strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
			return v, nil
		}
		return nil, nil
	}
	defer lock.Unlock(ctx)

	if cfg.UseL2() {
		if v, hit := e.readField(ctx, fields, hashKey, field, cfg); hit {
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				return nil, nil
			}
			e.promoteL1(ctx, cfg, localKey, v)
			return v, nil
		}
	} else if v, ok := e.local(cfg).cache.Get(localKey); ok && !strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
		return v, nil
	}
	return e.loadFieldDirect(ctx, cfg, fields, hashKey, field, localKey, loader)
}

func (e *Engine) loadFieldDirect(ctx context.Context, cfg *config.Resolved, fields strategy.FieldStrategy, hashKey, field, localKey string, loader Loader) (any, error) {
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	v = normalizeNil(v)
	if v == nil {
		return nil, nil
	}

	if cfg.UseL2() {
		if werr := fields.WriteField(ctx, e.cli, hashKey, field, v, cfg); werr != nil {
			log.ZWarn(ctx, "redis field write failed", werr, "key", hashKey, "field", field)
		}
	}
	if cfg.UseL1() {
		e.local(cfg).cache.Set(localKey, v)
	}
	return v, nil
}
