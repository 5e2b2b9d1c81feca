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

package config

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/openimsdk/tools/errs"
)

var (
	// ErrConfigNotFound is returned when no named cache matches a name or a
	// full key.
	ErrConfigNotFound = errs.New("multicache: config not found")
	// ErrConfigInvalid is returned when a named cache is missing a required
	// field. Resolution of that cache aborts; other caches are unaffected.
	ErrConfigInvalid = errs.New("multicache: config invalid")
)

// Resolver holds every successfully resolved cache configuration. It is
// built once at process start and read-only afterwards.
type Resolver struct {
	byName []*Resolved
	// byPrefix is sorted by descending namespace length so that
	// ResolveFromFullKey matches the longest namespace prefix first.
	byPrefix []*Resolved
	failed   map[string]error
}

// NewResolver merges the raw properties with the defaults block and the
// built-in constants, producing one immutable Resolved per named cache.
//
// entities maps each cache name to a prototype of the cached value (a value
// or a pointer; only its type is kept). A cache without a prototype or
// without a namespace fails resolution: it is excluded from the resolver and
// its error is reported by Resolve, but every other cache still loads.
func NewResolver(root *RootProperties, entities map[string]any) *Resolver {
	r := &Resolver{failed: make(map[string]error)}
	for name, props := range root.Configs {
		resolved, err := resolveOne(name, props, root.Defaults, entities[name])
		if err != nil {
			r.failed[name] = err
			continue
		}
		r.byName = append(r.byName, resolved)
	}
	r.byPrefix = append([]*Resolved(nil), r.byName...)
	sort.Slice(r.byPrefix, func(i, j int) bool {
		return len(r.byPrefix[i].Namespace) > len(r.byPrefix[j].Namespace)
	})
	return r
}

// Resolve returns the configuration registered under name.
func (r *Resolver) Resolve(name string) (*Resolved, error) {
	for _, c := range r.byName {
		if c.Name == name {
			return c, nil
		}
	}
	if err, ok := r.failed[name]; ok {
		return nil, err
	}
	return nil, errs.WrapMsg(ErrConfigNotFound, "unknown cache", "name", name)
}

// ResolveFromFullKey reverse-matches a fully qualified key to its
// configuration by longest namespace prefix.
func (r *Resolver) ResolveFromFullKey(fullKey string) (*Resolved, error) {
	for _, c := range r.byPrefix {
		if fullKey == c.Namespace || strings.HasPrefix(fullKey, c.Namespace+":") {
			return c, nil
		}
	}
	return nil, errs.WrapMsg(ErrConfigNotFound, "no namespace matches key", "fullKey", fullKey)
}

// All returns every resolved configuration.
func (r *Resolver) All() []*Resolved {
	return r.byName
}

func resolveOne(name string, props, defaults Properties, prototype any) (*Resolved, error) {
	namespace := pick(props.Namespace, defaults.Namespace, "")
	if namespace == "" {
		return nil, errs.WrapMsg(ErrConfigInvalid, "namespace is required", "name", name)
	}
	if prototype == nil {
		return nil, errs.WrapMsg(ErrConfigInvalid, "entity prototype is required", "name", name)
	}
	entityType := reflect.TypeOf(prototype)
	for entityType.Kind() == reflect.Pointer {
		entityType = entityType.Elem()
	}

	redisTTL, err := resolveTTL(props.RedisTTL, defaults.RedisTTL, DefaultRedisTTL)
	if err != nil {
		return nil, errs.WrapMsg(ErrConfigInvalid, "bad redisTTL", "name", name, "err", err.Error())
	}
	localTTL, err := resolveTTL(props.LocalTTL, defaults.LocalTTL, DefaultLocalTTL)
	if err != nil {
		return nil, errs.WrapMsg(ErrConfigInvalid, "bad localTTL", "name", name, "err", err.Error())
	}
	emptyTTL, err := resolveTTL(props.EmptyTTL, defaults.EmptyTTL, DefaultEmptyTTL)
	if err != nil {
		return nil, errs.WrapMsg(ErrConfigInvalid, "bad emptyTTL", "name", name, "err", err.Error())
	}

	policy := pick(props.StoragePolicy, defaults.StoragePolicy, "")
	if policy == "" {
		policy = inferPolicy(localTTL, redisTTL)
	}

	maxSize := props.LocalMaxSize
	if maxSize <= 0 {
		maxSize = defaults.LocalMaxSize
	}
	if maxSize <= 0 {
		maxSize = DefaultLocalMaxSize
	}

	return &Resolved{
		Name:           name,
		Namespace:      namespace,
		EntityType:     entityType,
		Shape:          strings.ToUpper(pick(props.StorageShape, defaults.StorageShape, ShapeScalar)),
		Policy:         policy,
		RedisTTL:       redisTTL,
		LocalTTL:       localTTL,
		EmptyTTL:       emptyTTL,
		LocalMaxSize:   maxSize,
		EmptyValueMark: pick(props.EmptyValueMark, defaults.EmptyValueMark, DefaultEmptyValueMark),
		KeyField:       pick(props.KeyField, defaults.KeyField, DefaultKeyField),
		BusinessKey:    pick(props.BusinessKey, defaults.BusinessKey, ""),
	}, nil
}

// resolveTTL walks the chain explicit -> defaults -> constant. A TTL that
// resolves to zero or an invalid negative value disables its tier and comes
// out as zero.
func resolveTTL(explicit, fallback string, builtin time.Duration) (time.Duration, error) {
	for _, raw := range []string{explicit, fallback} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, err
		}
		if !ttlEnabled(d) {
			return 0, nil
		}
		return d, nil
	}
	return builtin, nil
}

// inferPolicy derives the storage policy from which tier TTLs survived
// resolution, used when no policy is set explicitly.
func inferPolicy(localTTL, redisTTL time.Duration) string {
	switch {
	case ttlEnabled(localTTL) && ttlEnabled(redisTTL):
		return PolicyL1L2DB
	case ttlEnabled(localTTL):
		return PolicyL1DB
	case ttlEnabled(redisTTL):
		return PolicyL2DB
	default:
		return PolicyDB
	}
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
