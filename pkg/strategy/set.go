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

// NewSet stores entities as a native Redis set of JSON members, using the
// same plain-string sentinel convention as the list shape. It additionally
// implements UnionReader for the multi-key union path.
func NewSet() Strategy {
	return setStrategy{}
}

type setStrategy struct{}

func (setStrategy) Shape() string { return config.ShapeSet }

func (setStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
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
		log.ZWarn(ctx, "unexpected string value under set key", nil, "key", key)
		return nil, nil
	case "set":
		members, err := cli.GetSet(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(members) == 1 && members[0] == cfg.EmptyValueMark {
			return cfg.EmptyValueMark, nil
		}
		return DecodeMembers(cfg, members)
	default:
		log.ZWarn(ctx, "unexpected redis type under set key", nil, "key", key, "type", t)
		return nil, nil
	}
}

func (setStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	members, empty, err := encodeSlice(value)
	if err != nil {
		return err
	}
	if empty {
		return cli.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	b := cli.Batch()
	b.ReplaceSet(ctx, key, members, cfg.RedisTTL)
	return b.Exec(ctx)
}

func (setStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	return readManyCollections(ctx, cli, keys, cfg, "set", func(ctx context.Context, pipe redis.Pipeliner, key string) collectionCmd {
		return setCmd{cmd: pipe.SMembers(ctx, key)}
	})
}

func (setStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	for key, value := range data {
		members, empty, err := encodeSlice(value)
		if err != nil {
			return err
		}
		if empty {
			b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
			continue
		}
		b.ReplaceSet(ctx, key, members, cfg.RedisTTL)
	}
	return nil
}

func (setStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	for _, key := range keys {
		b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	return nil
}

// ReadUnion unions the members of every existing key and reports absent
// keys in one atomic script call. Sentinel members are stripped from the
// union, a key cached as empty is present but contributes nothing.
func (setStrategy) ReadUnion(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (members, missing []string, err error) {
	raw, missing, err := cli.UnionWithMisses(ctx, keys)
	if err != nil {
		return nil, nil, err
	}
	members = make([]string, 0, len(raw))
	for _, m := range raw {
		if m != cfg.EmptyValueMark {
			members = append(members, m)
		}
	}
	return members, missing, nil
}

type setCmd struct {
	cmd *redis.StringSliceCmd
}

func (c setCmd) members() ([]string, error) { return c.cmd.Result() }
