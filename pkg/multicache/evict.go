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
	"encoding/json"

	"github.com/openimsdk/tools/log"

	"github.com/vevoly/multicache/pkg/cachekey"
)

// InvalidationMessage rides the evict pub/sub channel so every process
// drops its in-process copy of the key. Sender carries the publishing
// engine's instance ID; a listener seeing its own ID skips the redundant
// local delete.
type InvalidationMessage struct {
	CacheName string `json:"cacheName"`
	FullKey   string `json:"fullKey"`
	Sender    string `json:"sender,omitempty"`
}

// Evict removes a key from every tier and broadcasts the invalidation.
// The raw key may be a bare business key or an already fully qualified
// one; both normalize to the same key. Idempotent: evicting an absent key
// is a no-op.
func (e *Engine) Evict(ctx context.Context, cacheName, rawKey string) error {
	return e.evict(ctx, cacheName, rawKey, false)
}

// EvictLocal removes a key from the local tier only, without touching
// Redis or publishing. The invalidation listener uses it to apply remote
// evictions without echoing them back.
func (e *Engine) EvictLocal(ctx context.Context, cacheName, rawKey string) error {
	return e.evict(ctx, cacheName, rawKey, true)
}

func (e *Engine) evict(ctx context.Context, cacheName, rawKey string, localOnly bool) error {
	cfg, _, err := e.resolve(cacheName)
	if err != nil {
		return err
	}
	fullKey := cachekey.Normalize(cfg.Namespace, rawKey)

	if cfg.UseL2() && !localOnly {
		if err := e.cli.Del(ctx, fullKey); err != nil {
			return err
		}
	}
	if cfg.UseL1() {
		e.local(cfg).cache.Del(fullKey)
	}

	if !localOnly {
		e.publishInvalidation(ctx, cfg.Name, fullKey)
	}
	return nil
}

func (e *Engine) publishInvalidation(ctx context.Context, cacheName, fullKey string) {
	if e.cli == nil {
		return
	}
	payload, err := json.Marshal(InvalidationMessage{
		CacheName: cacheName,
		FullKey:   fullKey,
		Sender:    e.instanceID,
	})
	if err != nil {
		log.ZWarn(ctx, "encode invalidation failed", err, "key", fullKey)
		return
	}
	if err := e.cli.Publish(ctx, e.opts.evictTopic, string(payload)); err != nil {
		// Best effort: remote L1 copies age out on their own TTL.
		log.ZWarn(ctx, "publish invalidation failed", err, "key", fullKey)
	}
}

// Preload pushes a prepared dataset straight into the cache tiers. Keys
// may be bare business keys or fully qualified. Sentinels are never
// written: preloading absence makes no sense. Returns the number of
// entries written, or -1 when the write-through could not be performed at
// all.
func (e *Engine) Preload(ctx context.Context, cacheName string, data map[string]any) int {
	cfg, strat, err := e.resolve(cacheName)
	if err != nil {
		log.ZError(ctx, "preload aborted", err, "cache", cacheName)
		return -1
	}

	writeData := make(map[string]any, len(data))
	for rawKey, v := range data {
		if v = normalizeNil(v); v == nil {
			continue
		}
		writeData[cachekey.Normalize(cfg.Namespace, rawKey)] = v
	}
	if len(writeData) == 0 {
		return 0
	}

	if cfg.UseL2() {
		b := e.cli.Batch()
		if err := strat.WriteMany(ctx, b, writeData, cfg); err != nil {
			log.ZError(ctx, "preload write failed", err, "cache", cacheName)
			return -1
		}
		if err := b.Exec(ctx); err != nil {
			log.ZError(ctx, "preload write failed", err, "cache", cacheName)
			return -1
		}
	}
	if cfg.UseL1() {
		tier := e.local(cfg)
		e.async(ctx, func(context.Context) {
			for key, v := range writeData {
				tier.cache.Set(key, v)
			}
		})
	}
	log.ZInfo(ctx, "preload complete", "cache", cacheName, "entries", len(writeData))
	return len(writeData)
}
