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

	"github.com/openimsdk/tools/errs"
)

// Fetch is the typed front of Engine.Fetch. A confirmed-absent value comes
// back as the zero of T with a nil error, matching pointer and slice
// callers' natural nil checks.
func Fetch[T any](ctx context.Context, e *Engine, cacheName string, keyParts []string, loader func(ctx context.Context) (T, error)) (T, error) {
	v, err := e.Fetch(ctx, cacheName, keyParts, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	return castValue[T](v, err)
}

// FetchByKey is Fetch for the common single-part key.
func FetchByKey[T any](ctx context.Context, e *Engine, cacheName, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	return Fetch(ctx, e, cacheName, []string{key}, loader)
}

// FetchBatch is the typed front of Engine.FetchBatch for loaders that
// return a map keyed by business key.
func FetchBatch[T any](ctx context.Context, e *Engine, cacheName string, ids []string, loader func(ctx context.Context, missing []string) (map[string]T, error)) (map[string]T, error) {
	res, err := e.FetchBatch(ctx, cacheName, ids, func(ctx context.Context, missing []string) (any, error) {
		return loader(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(res))
	for id, v := range res {
		tv, err := castValue[T](v, nil)
		if err != nil {
			return nil, err
		}
		out[id] = tv
	}
	return out, nil
}

// FetchBatchSlice accepts a loader that returns a plain slice of entities;
// the engine correlates rows back to identifiers by the configured
// business key field.
func FetchBatchSlice[T any](ctx context.Context, e *Engine, cacheName string, ids []string, loader func(ctx context.Context, missing []string) ([]T, error)) (map[string]T, error) {
	res, err := e.FetchBatch(ctx, cacheName, ids, func(ctx context.Context, missing []string) (any, error) {
		return loader(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(res))
	for id, v := range res {
		tv, err := castValue[T](v, nil)
		if err != nil {
			return nil, err
		}
		out[id] = tv
	}
	return out, nil
}

// FetchUnion is the typed front of Engine.FetchUnion.
func FetchUnion[T any](ctx context.Context, e *Engine, cacheName string, ids []string, loader func(ctx context.Context, missing []string) (map[string][]T, error)) ([]T, error) {
	items, err := e.FetchUnion(ctx, cacheName, ids, func(ctx context.Context, missing []string) (any, error) {
		return loader(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, v := range items {
		tv, err := castValue[T](v, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, tv)
	}
	return out, nil
}

// FetchHashField is the typed front of Engine.FetchHashField.
func FetchHashField[T any](ctx context.Context, e *Engine, cacheName string, keyParts []string, field string, loader func(ctx context.Context) (T, error)) (T, error) {
	v, err := e.FetchHashField(ctx, cacheName, keyParts, field, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	return castValue[T](v, err)
}

func castValue[T any](v any, err error) (T, error) {
	var zero T
	if err != nil || v == nil {
		return zero, err
	}
	tv, ok := v.(T)
	if !ok {
		return zero, errs.New("cached value has unexpected type").WrapMsg("fetch")
	}
	return tv, nil
}
