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
	"github.com/redis/go-redis/v9"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

// Scorable is the capability a sorted-set entity must provide on write: a
// stable identifier for the member and the score it ranks under.
type Scorable interface {
	CacheID() string
	CacheScore() float64
}

// ScorableSetter rehydrates an entity from the (id, score) pair on read.
// Only those two fields survive a sorted-set round trip, the shape stores
// nothing else.
type ScorableSetter interface {
	SetCacheID(id string)
	SetCacheScore(score float64)
}

// NewSortedSet stores Scorable entities as a native ZSET of (id, score)
// pairs. Reads return bare entities carrying only id and score. Batch reads
// are not expressible over ZSETs and return ErrUnsupportedOperation.
func NewSortedSet() Strategy {
	return sortedSetStrategy{}
}

type sortedSetStrategy struct{}

func (sortedSetStrategy) Shape() string { return config.ShapeSortedSet }

func (sortedSetStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
	t, err := cli.TypeOf(ctx, key)
	if err != nil {
		return nil, err
	}
	switch t {
	case "none":
		return nil, nil
	case "string":
		v, ok, err := cli.Get(ctx, key)
		if err != nil || !ok {
			return nil, err
		}
		if v == cfg.EmptyValueMark {
			return v, nil
		}
		log.ZWarn(ctx, "unexpected string value under zset key", nil, "key", key)
		return nil, nil
	case "zset":
		members, err := cli.GetZSetWithScores(ctx, key)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(members))
		for _, z := range members {
			id, ok := z.Member.(string)
			if !ok {
				continue
			}
			e := cfg.NewEntity()
			setter, ok := e.(ScorableSetter)
			if !ok {
				return nil, ErrNotScorable.WrapMsg("read", "cache", cfg.Name, "type", cfg.EntityType.String())
			}
			setter.SetCacheID(id)
			setter.SetCacheScore(z.Score)
			out = append(out, e)
		}
		return out, nil
	default:
		log.ZWarn(ctx, "unexpected redis type under zset key", nil, "key", key, "type", t)
		return nil, nil
	}
}

func (sortedSetStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	members, empty, err := toZMembers(value, cfg)
	if err != nil {
		return err
	}
	if empty {
		return cli.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	b := cli.Batch()
	b.ReplaceZSet(ctx, key, members, cfg.RedisTTL)
	return b.Exec(ctx)
}

func (sortedSetStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	return nil, ErrUnsupportedOperation.WrapMsg("readMany", "shape", config.ShapeSortedSet)
}

func (sortedSetStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	for key, value := range data {
		members, empty, err := toZMembers(value, cfg)
		if err != nil {
			return err
		}
		if empty {
			b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
			continue
		}
		b.ReplaceZSet(ctx, key, members, cfg.RedisTTL)
	}
	return nil
}

func (sortedSetStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	for _, key := range keys {
		b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	return nil
}

func toZMembers(value any, cfg *config.Resolved) (members []redis.Z, empty bool, err error) {
	items, empty, err := toSlice(value)
	if err != nil || empty {
		return nil, empty, err
	}
	members = make([]redis.Z, len(items))
	for i, item := range items {
		sc, ok := item.(Scorable)
		if !ok {
			return nil, false, ErrNotScorable.WrapMsg("write", "cache", cfg.Name)
		}
		members[i] = redis.Z{Score: sc.CacheScore(), Member: sc.CacheID()}
	}
	return members, false, nil
}
