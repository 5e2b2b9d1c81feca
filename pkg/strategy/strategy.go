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

// Package strategy maps cache values onto native Redis structures, one
// implementation per storage shape. Strategies own the wire encoding,
// including the empty-value sentinel each shape uses to remember a
// confirmed-absent load. On read a sentinel is normalized to the bare
// marker string so callers detect it with one comparison regardless of
// shape.
package strategy

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/openimsdk/tools/errs"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

var (
	// ErrUnsupportedOperation reports an operation a shape cannot express,
	// such as a batch read over sorted sets. It propagates to the caller
	// unchanged, it is never downgraded to a miss.
	ErrUnsupportedOperation = errs.New("operation not supported by storage shape")

	// ErrUnsupportedShape reports a shape with no registered strategy.
	ErrUnsupportedShape = errs.New("no strategy registered for storage shape")

	// ErrNotScorable reports a sorted-set entity missing the Scorable
	// capability.
	ErrNotScorable = errs.New("sorted set entity does not implement Scorable")
)

// Result is one key's outcome in a batch read. A key absent from the result
// map is a full miss; Empty marks a sentinel hit, a load that already
// confirmed the value does not exist.
type Result struct {
	Value any
	Empty bool
}

// Strategy reads and writes one storage shape.
//
// Read returns (nil, nil) on a miss and the bare marker string on a
// sentinel hit. Write stores nil (or an empty collection) as the shape's
// sentinel under EmptyTTL, anything else as the real value under RedisTTL.
type Strategy interface {
	Shape() string
	Read(ctx context.Context, cli *rediscache.Client, key string, cfg *config.Resolved) (any, error)
	Write(ctx context.Context, cli *rediscache.Client, key string, value any, cfg *config.Resolved) error
	ReadMany(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (map[string]Result, error)
	WriteMany(ctx context.Context, b *rediscache.Batch, data map[string]any, cfg *config.Resolved) error
	WriteManyEmpty(ctx context.Context, b *rediscache.Batch, keys []string, cfg *config.Resolved) error
}

// FieldStrategy is the per-field surface of the hash shape.
type FieldStrategy interface {
	ReadField(ctx context.Context, cli *rediscache.Client, key, field string, cfg *config.Resolved) (any, error)
	WriteField(ctx context.Context, cli *rediscache.Client, key, field string, value any, cfg *config.Resolved) error
}

// UnionReader is the set shape's bulk surface: union every existing key's
// members and report the keys that were absent, atomically.
type UnionReader interface {
	ReadUnion(ctx context.Context, cli *rediscache.Client, keys []string, cfg *config.Resolved) (members []string, missing []string, err error)
}

// IsEmptyValue reports whether a Read result is the empty-value sentinel.
func IsEmptyValue(v any, mark string) bool {
	s, ok := v.(string)
	return ok && s == mark
}

// Registry resolves shapes to strategies. It is built once at startup and
// read-only afterwards.
type Registry struct {
	byShape map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{byShape: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.byShape[s.Shape()] = s
	}
	return r
}

// Default returns a registry with every built-in shape.
func Default() *Registry {
	return NewRegistry(
		NewScalar(),
		NewList(),
		NewSet(),
		NewSortedSet(),
		NewHashMap(),
		NewPage(),
	)
}

func (r *Registry) Get(shape string) (Strategy, error) {
	s, ok := r.byShape[shape]
	if !ok {
		return nil, ErrUnsupportedShape.WrapMsg("get strategy", "shape", shape)
	}
	return s, nil
}

// encode marshals an entity to its JSON wire form.
func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errs.WrapMsg(err, "encode cache value")
	}
	return string(data), nil
}

// decodeEntity unmarshals one wire value into a fresh instance of the
// configured entity type.
func decodeEntity(cfg *config.Resolved, data string) (any, error) {
	e := cfg.NewEntity()
	if err := json.Unmarshal([]byte(data), e); err != nil {
		return nil, errs.WrapMsg(err, "decode cache value", "cache", cfg.Name)
	}
	return e, nil
}

// DecodeMembers unmarshals raw collection members, skipping the sentinel
// marker if present among them.
func DecodeMembers(cfg *config.Resolved, members []string) ([]any, error) {
	out := make([]any, 0, len(members))
	for _, m := range members {
		if m == cfg.EmptyValueMark {
			continue
		}
		e, err := decodeEntity(cfg, m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// toSlice normalizes any slice or array value to []any. nil and empty
// slices both report empty.
func toSlice(value any) (items []any, empty bool, err error) {
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
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false, errs.New("value is not a slice").WrapMsg("collection shape", "type", reflect.TypeOf(value).String())
	}
	if rv.Len() == 0 {
		return nil, true, nil
	}
	items = make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, false, nil
}

// encodeSlice marshals every element of a slice value.
func encodeSlice(value any) (members []string, empty bool, err error) {
	items, empty, err := toSlice(value)
	if err != nil || empty {
		return nil, empty, err
	}
	members = make([]string, len(items))
	for i, item := range items {
		if members[i], err = encode(item); err != nil {
			return nil, false, err
		}
	}
	return members, false, nil
}
