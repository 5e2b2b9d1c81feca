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
)

// StartInvalidationListener subscribes to the evict channel and applies
// remote invalidations to the local tier. It runs until ctx is canceled.
// A malformed payload is logged and skipped; the listener itself never
// dies from bad input.
func (e *Engine) StartInvalidationListener(ctx context.Context) {
	if e.cli == nil {
		return
	}
	pubsub := e.cli.Subscribe(ctx, e.opts.evictTopic)

	go func() {
		defer func() {
			if err := pubsub.Close(); err != nil {
				log.ZWarn(ctx, "close invalidation subscription", err)
			}
		}()
		log.ZInfo(ctx, "invalidation listener started", "channel", e.opts.evictTopic)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e.handleInvalidation(ctx, msg.Payload)
			}
		}
	}()
}

func (e *Engine) handleInvalidation(ctx context.Context, payload string) {
	var m InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.ZWarn(ctx, "drop malformed invalidation", err, "payload", payload)
		return
	}
	if m.FullKey == "" {
		log.ZWarn(ctx, "drop invalidation without key", nil, "payload", payload)
		return
	}
	if m.Sender != "" && m.Sender == e.instanceID {
		// Our own broadcast; the local delete already happened.
		return
	}

	// Resolve by name when present, by key prefix otherwise, so older
	// publishers that omit the cache name still invalidate correctly.
	cfg, err := e.resolver.Resolve(m.CacheName)
	if err != nil {
		if cfg, err = e.resolver.ResolveFromFullKey(m.FullKey); err != nil {
			log.ZWarn(ctx, "drop invalidation for unknown cache", err, "key", m.FullKey)
			return
		}
	}
	if !cfg.UseL1() {
		return
	}
	e.local(cfg).cache.Del(m.FullKey)
	log.ZDebug(ctx, "applied remote invalidation", "cache", cfg.Name, "key", m.FullKey)
}
