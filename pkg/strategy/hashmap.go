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

package strategy

import (
	"context"
	"reflect"
	"sync"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

// NewHashMap stores a map of entities as a Redis hash with JSON field
// values. The sentinel is a one-entry hash keyed by the marker. Hash expiry
// is key-scoped in Redis, so per-field writes refresh the whole key and an
// absent field is never sentinel-cached, a field-level TTL cannot exist.
func NewHashMap() Strategy {
	return hashMapStrategy{}
}

type hashMapStrategy struct{}

func (hashMapStrategy) Shape() string { return config.ShapeHash }

func (hashMapStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
	fields, err := cli.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeHash(ctx, fields, key, cfg)
}

func (hashMapStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	fields, empty, err := encodeHash(value)
	if err != nil {
		return err
	}
	b := cli.Batch()
	if empty {
		b.ReplaceHash(ctx, key, map[string]string{cfg.EmptyValueMark: cfg.EmptyValueMark}, cfg.EmptyTTL)
	} else {
		b.ReplaceHash(ctx, key, fields, cfg.RedisTTL)
	}
	return b.Exec(ctx)
}

func (hashMapStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	out := make(map[string]Result, len(keys))
	var mu sync.Mutex
	err := rediscache.ProcessKeysBySlot(ctx, cli.Raw(), keys, func(ctx context.Context, _ int64, slotKeys []string) error {
		pipe := cli.Raw().Pipeline()
		cmds := make([]*redis.MapStringStringCmd, len(slotKeys))
		for i, key := range slotKeys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return errs.WrapMsg(err, "hgetall pipeline", "keys", slotKeys)
		}
		mu.Lock()
		defer mu.Unlock()
		for i, cmd := range cmds {
			fields, err := cmd.Result()
			if err != nil {
				log.ZWarn(ctx, "drop unreadable hash entry", err, "key", slotKeys[i])
				continue
			}
			v, err := decodeHash(ctx, fields, slotKeys[i], cfg)
			if err != nil || v == nil {
				continue
			}
			if IsEmptyValue(v, cfg.EmptyValueMark) {
				out[slotKeys[i]] = Result{Empty: true}
				continue
			}
			out[slotKeys[i]] = Result{Value: v}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (hashMapStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	for key, value := range data {
		fields, empty, err := encodeHash(value)
		if err != nil {
			return err
		}
		if empty {
			b.ReplaceHash(ctx, key, map[string]string{cfg.EmptyValueMark: cfg.EmptyValueMark}, cfg.EmptyTTL)
			continue
		}
		b.ReplaceHash(ctx, key, fields, cfg.RedisTTL)
	}
	return nil
}

func (hashMapStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	for _, key := range keys {
		b.ReplaceHash(ctx, key, map[string]string{cfg.EmptyValueMark: cfg.EmptyValueMark}, cfg.EmptyTTL)
	}
	return nil
}

// ReadField loads one hash field, (nil, nil) when the field is absent.
func (hashMapStrategy) ReadField(ctx context.Context, cli *rediscache.Client, key, field string, cfg *config.Resolved) (any, error) {
	v, ok, err := cli.HGet(ctx, key, field)
	if err != nil || !ok {
		return nil, err
	}
	if v == cfg.EmptyValueMark {
		return v, nil
	}
	return decodeEntity(cfg, v)
}

// WriteField stores one hash field and refreshes the key TTL. A nil value
// is skipped: there is no per-field sentinel.
func (hashMapStrategy) WriteField(ctx context.Context, cli *rediscache.Client, key, field string, value any, cfg *config.Resolved) error {
	if value == nil {
		return nil
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	return cli.HSetField(ctx, key, field, data, cfg.RedisTTL)
}

func decodeHash(ctx context.Context, fields map[string]string, key string, cfg *config.Resolved) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) == 1 {
		if _, ok := fields[cfg.EmptyValueMark]; ok {
			return cfg.EmptyValueMark, nil
		}
	}
	out := make(map[string]any, len(fields))
	for field, raw := range fields {
		e, err := decodeEntity(cfg, raw)
		if err != nil {
			log.ZWarn(ctx, "drop undecodable hash field", err, "key", key, "field", field)
			continue
		}
		out[field] = e
	}
	return out, nil
}

func encodeHash(value any) (fields map[string]string, empty bool, err error) {
	if value == nil {
		return nil, true, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, true, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map {
		return nil, false, errs.New("value is not a map").WrapMsg("hash shape", "type", reflect.TypeOf(value).String())
	}
	if rv.Len() == 0 {
		return nil, true, nil
	}
	fields = make(map[string]string, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		field, ok := iter.Key().Interface().(string)
		if !ok {
			return nil, false, errs.New("hash field key is not a string").Wrap()
		}
		data, err := encode(iter.Value().Interface())
		if err != nil {
			return nil, false, err
		}
		fields[field] = data
	}
	return fields, false, nil
}
