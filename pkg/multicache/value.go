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
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/openimsdk/tools/errs"
)

// normalizeNil collapses typed nils (nil pointers, maps, slices boxed in a
// non-nil interface) to a plain nil so absence checks stay a single
// comparison.
func normalizeNil(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// normalizeBatch turns a batch loader result into businessKey -> value.
// Maps pass through with stringified keys; slices are keyed by extracting
// keyField from each entity.
func normalizeBatch(loaded any, keyField string) (map[string]any, error) {
	loaded = normalizeNil(loaded)
	if loaded == nil {
		return map[string]any{}, nil
	}
	rv := reflect.ValueOf(loaded)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalizeNil(iter.Value().Interface())
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make(map[string]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := normalizeNil(rv.Index(i).Interface())
			if item == nil {
				continue
			}
			key, ok := extractKey(item, keyField)
			if !ok {
				return nil, errs.New("entity has no usable key field").WrapMsg("normalize batch result", "field", keyField, "type", reflect.TypeOf(item).String())
			}
			out[key] = item
		}
		return out, nil
	default:
		return nil, errs.New("batch loader must return a map or slice").WrapMsg("normalize batch result", "type", reflect.TypeOf(loaded).String())
	}
}

// extractKey pulls the business key off an entity by field name,
// case-insensitively.
func extractKey(item any, field string) (string, bool) {
	var m map[string]any
	if err := mapstructure.Decode(item, &m); err != nil {
		return "", false
	}
	for k, v := range m {
		if strings.EqualFold(k, field) {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}
