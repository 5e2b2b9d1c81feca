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

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

// NewPage stores a whole page result as one JSON blob, sentinel included,
// exactly like the scalar shape. Page keys encode query parameters, so a
// batch surface over them has no meaning: the multi-key operations return
// ErrUnsupportedOperation rather than silently doing nothing.
func NewPage() Strategy {
	return pageStrategy{}
}

type pageStrategy struct{}

func (pageStrategy) Shape() string { return config.ShapePage }

func (pageStrategy) Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error) {
	v, ok, err := cli.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	if v == cfg.EmptyValueMark {
		return v, nil
	}
	return decodeEntity(cfg, v)
}

func (pageStrategy) Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error {
	if value == nil {
		return cli.Set(ctx, key, cfg.EmptyValueMark, cfg.EmptyTTL)
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	return cli.Set(ctx, key, data, cfg.RedisTTL)
}

func (pageStrategy) ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error) {
	return nil, ErrUnsupportedOperation.WrapMsg("readMany", "shape", config.ShapePage)
}

func (pageStrategy) WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error {
	return ErrUnsupportedOperation.WrapMsg("writeMany", "shape", config.ShapePage)
}

func (pageStrategy) WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error {
	return ErrUnsupportedOperation.WrapMsg("writeManyEmpty", "shape", config.ShapePage)
}
