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

	"github.com/openimsdk/tools/log"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

// NewScalar stores one entity per key as a JSON string. The sentinel is the
// bare marker string. This is the only shape with a full batch surface, so
// batch fetch paths require it.
func NewScalar() Strategy {
	return scalarStrategy{}
}

type scalarStrategy struct{}

func (scalarStrategy) Shape() string { return config.ShapeScalar }

func (scalarStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
	v, ok, err := cli.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	if v == cfg.EmptyValueMark {
		return v, nil
	}
	return decodeEntity(cfg, v)
}

func (scalarStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	if value == nil {
		return cli.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	return cli.Set(ctx, key, data, cfg.RedisTTL)
}

func (scalarStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	values, err := cli.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Result, len(values))
	for key, v := range values {
		if v == cfg.EmptyValueMark {
			out[key] = Result{Empty: true}
			continue
		}
		e, err := decodeEntity(cfg, v)
		if err != nil {
			// A corrupt entry degrades to a miss for that key only.
			log.ZWarn(ctx, "drop undecodable cache entry", err, "key", key)
			continue
		}
		out[key] = Result{Value: e}
	}
	return out, nil
}

func (scalarStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	for key, value := range data {
		if value == nil {
			b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
			continue
		}
		encoded, err := encode(value)
		if err != nil {
			return err
		}
		b.Set(ctx, key, encoded, cfg.RedisTTL)
	}
	return nil
}

func (scalarStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	for _, key := range keys {
		b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	return nil
}
