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
	"reflect"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/openimsdk/tools/utils/datautil"

	"github.com/vevoly/multicache/pkg/cachekey"
	"github.com/vevoly/multicache/pkg/strategy"
)

// FetchUnion resolves the union of several set-shaped keys of one cache.
// L1-cached sets contribute without touching Redis; the rest go through one
// atomic union-with-miss-detection call; still-missing identifiers hit the
// loader without a lock. Sets are small and idempotent to rebuild, so a
// duplicate concurrent load costs less than serializing every union behind
// a distributed lock.
func (e *Engine) FetchUnion(ctx context.Context, cacheName string, ids []string, loader BatchLoader) ([]any, error) {
	cfg, strat, err := e.resolve(cacheName)
	if err != nil {
		return nil, err
	}
	reader, ok := strat.(strategy.UnionReader)
	if !ok {
		return nil, strategy.ErrUnsupportedOperation.WrapMsg("union fetch", "shape", cfg.Shape)
	}

	ids = datautil.Distinct(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	keyByID := make(map[string]string, len(ids))
	idByKey := make(map[string]string, len(ids))
	for _, id := range ids {
		key := cachekey.BuildKey(cfg.Namespace, id)
		keyByID[id] = key
		idByKey[key] = id
	}

	// Dedup across tiers by wire form: L1 holds decoded entities, Redis
	// and the loader produce raw members, JSON is the common denominator.
	memberSet := make(map[string]struct{})
	var unresolved []string

	if cfg.UseL1() {
		tier := e.local(cfg)
		for _, id := range ids {
			v, ok := tier.cache.Get(keyByID[id])
			if !ok {
				unresolved = append(unresolved, id)
				continue
			}
			if strategy.IsEmptyValue(v, cfg.EmptyValueMark) {
				continue
			}
			items, ok := v.([]any)
			if !ok {
				unresolved = append(unresolved, id)
				continue
			}
			for _, item := range items {
				data, err := json.Marshal(item)
				if err != nil {
					return nil, errs.WrapMsg(err, "encode cached member", "cache", cfg.Name)
				}
				memberSet[string(data)] = struct{}{}
			}
		}
	} else {
		unresolved = ids
	}

	var missingIDs []string
	if cfg.UseL2() && len(unresolved) > 0 {
		keys := make([]string, len(unresolved))
		for i, id := range unresolved {
			keys[i] = keyByID[id]
		}
		members, missingKeys, err := reader.ReadUnion(ctx, e.cli, keys, cfg)
		if err != nil {
			log.ZWarn(ctx, "redis union degraded to miss", err, "cache", cfg.Name)
			missingIDs = unresolved
		} else {
			for _, m := range members {
				memberSet[m] = struct{}{}
			}
			for _, key := range missingKeys {
				missingIDs = append(missingIDs, idByKey[key])
			}
		}
	} else {
		missingIDs = unresolved
	}

	if len(missingIDs) > 0 {
		loaded, err := loader(ctx, missingIDs)
		if err != nil {
			return nil, err
		}
		byID, err := normalizeBatch(loaded, cfg.BatchKeyField())
		if err != nil {
			return nil, err
		}

		writeData := make(map[string]any)
		var sentinelKeys []string
		l1Sets := make(map[string]any)
		for _, id := range missingIDs {
			key := keyByID[id]
			v := normalizeNil(byID[id])
			if v == nil {
				sentinelKeys = append(sentinelKeys, key)
				continue
			}
			writeData[key] = v
			items, members, err := sliceMembers(v)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				memberSet[m] = struct{}{}
			}
			l1Sets[key] = items
		}

		if cfg.UseL2() {
			b := e.cli.Batch()
			if err := strat.WriteMany(ctx, b, writeData, cfg); err != nil {
				log.ZWarn(ctx, "union write-through skipped", err, "cache", cfg.Name)
			} else if err := strat.WriteManyEmpty(ctx, b, sentinelKeys, cfg); err != nil {
				log.ZWarn(ctx, "union sentinel write skipped", err, "cache", cfg.Name)
			} else if err := b.Exec(ctx); err != nil {
				log.ZWarn(ctx, "union write-through failed", err, "cache", cfg.Name)
			}
		}
		if cfg.UseL1() && len(l1Sets) > 0 {
			tier := e.local(cfg)
			e.async(ctx, func(context.Context) {
				for key, v := range l1Sets {
					tier.cache.Set(key, v)
				}
			})
		}
	}

	raw := make([]string, 0, len(memberSet))
	for m := range memberSet {
		raw = append(raw, m)
	}
	return strategy.DecodeMembers(cfg, raw)
}

// sliceMembers exposes a loader result slice both as []any for L1 and as
// JSON members for deduplication.
func sliceMembers(v any) ([]any, []string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, nil, errs.New("union loader values must be slices").WrapMsg("union fetch", "type", reflect.TypeOf(v).String())
	}
	items := make([]any, rv.Len())
	members := make([]string, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
		data, err := json.Marshal(items[i])
		if err != nil {
			return nil, nil, errs.WrapMsg(err, "encode loaded member")
		}
		members[i] = string(data)
	}
	return items, members, nil
}
