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

// NewList stores a slice of entities as a native Redis list of JSON
// members. An empty load is remembered as a plain string key holding the
// marker: SET overwrites whatever list was there, and the read side
// dispatches on the key's type. A list whose single member is the marker is
// also honored as a sentinel for compatibility with batch writers.
func NewList() Strategy {
	return listStrategy{}
}

type listStrategy struct{}

func (listStrategy) Shape() string { return config.ShapeList }

func (listStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
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
		log.ZWarn(ctx, "unexpected string value under list key", nil, "key", key)
		return nil, nil
	case "list":
		members, err := cli.GetList(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(members) == 1 && members[0] == cfg.EmptyValueMark {
			return cfg.EmptyValueMark, nil
		}
		return DecodeMembers(cfg, members)
	default:
		log.ZWarn(ctx, "unexpected redis type under list key", nil, "key", key, "type", t)
		return nil, nil
	}
}

func (listStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	members, empty, err := encodeSlice(value)
	if err != nil {
		return err
	}
	if empty {
		return cli.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	b := cli.Batch()
	b.ReplaceList(ctx, key, members, cfg.RedisTTL)
	return b.Exec(ctx)
}

func (listStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	return readManyCollections(ctx, cli, keys, cfg, "list", func(ctx context.Context, pipe redis.Pipeliner, key string) collectionCmd {
		return listCmd{cmd: pipe.LRange(ctx, key, 0, -1)}
	})
}

func (listStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	for key, value := range data {
		members, empty, err := encodeSlice(value)
		if err != nil {
			return err
		}
		if empty {
			b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
			continue
		}
		b.ReplaceList(ctx, key, members, cfg.RedisTTL)
	}
	return nil
}

func (listStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	for _, key := range keys {
		b.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	return nil
}

type listCmd struct {
	cmd *redis.StringSliceCmd
}

func (c listCmd) members() ([]string, error) { return c.cmd.Result() }
