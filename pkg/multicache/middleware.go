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

import "context"

// CacheableConfig binds a decorated function to a named cache. The
// decorators below are plain function wrappers: caching behavior is
// explicit at the call site, there is no interception machinery behind
// them.
type CacheableConfig struct {
	// Cache is the configured cache name the wrapped calls go through.
	Cache string
}

// Cacheable wraps a keyed lookup so every call runs through the cache
// cascade. The wrapped function only executes on a full miss, as the
// elected loader.
func Cacheable[T any](e *Engine, cfg CacheableConfig, fn func(ctx context.Context, keyParts ...string) (T, error)) func(ctx context.Context, keyParts ...string) (T, error) {
	return func(ctx context.Context, keyParts ...string) (T, error) {
		return Fetch[T](ctx, e, cfg.Cache, keyParts, func(ctx context.Context) (T, error) {
			return fn(ctx, keyParts...)
		})
	}
}

// BatchCacheable wraps a bulk lookup the same way: the wrapped function
// receives only the identifiers no tier could serve.
func BatchCacheable[T any](e *Engine, cfg CacheableConfig, fn func(ctx context.Context, missing []string) (map[string]T, error)) func(ctx context.Context, ids []string) (map[string]T, error) {
	return func(ctx context.Context, ids []string) (map[string]T, error) {
		return FetchBatch[T](ctx, e, cfg.Cache, ids, fn)
	}
}
