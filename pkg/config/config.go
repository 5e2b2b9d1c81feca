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
	"strings"
	"time"
)

// Storage shapes. A shape names the Redis structure a cached value is stored
// in and selects the strategy that handles it. Custom strategies register
// their own tags.
const (
	ShapeScalar    = "STRING"
	ShapeList      = "LIST"
	ShapeSet       = "SET"
	ShapeSortedSet = "ZSET"
	ShapeHash      = "HASH"
	ShapePage      = "PAGE"
)

// Storage policies. The policy string lists the enabled tiers; DB is always
// the final fallback.
const (
	PolicyL1L2DB = "L1_L2_DB"
	PolicyL1DB   = "L1_DB"
	PolicyL2DB   = "L2_DB"
	PolicyDB     = "DB"
)

// Built-in defaults, the last link of the resolution chain
// (explicit value -> defaults block -> constant).
const (
	DefaultRedisTTL     = time.Hour
	DefaultLocalTTL     = 30 * time.Second
	DefaultEmptyTTL     = time.Minute
	DefaultLocalMaxSize = 100
	DefaultKeyField     = "id"

	// DefaultEmptyValueMark is written in place of absent data to stop
	// repeated data-source lookups for known-empty keys.
	DefaultEmptyValueMark = "MULTI_CACHE_NULL"

	// EvictTopic is the pub/sub channel carrying cross-process L1
	// invalidation messages.
	EvictTopic = "multicache:topic:evict"

	// NeverExpire marks a tier TTL that should not expire at all. Any other
	// non-positive TTL disables the tier.
	NeverExpire = -1 * time.Second
)

// Resolved is the immutable, fully-resolved configuration of one named cache.
// It is produced once by the Resolver at startup and read-only afterwards.
type Resolved struct {
	// Name is the configuration key the cache was registered under.
	Name string
	// Namespace prefixes every key of this cache. Required.
	Namespace string
	// EntityType is the reified type of the cached value, used to
	// deserialize L2 entries. Required.
	EntityType reflect.Type
	// Shape selects the storage strategy.
	Shape string
	// Policy lists the enabled tiers, e.g. "L1_L2_DB".
	Policy string

	RedisTTL     time.Duration
	LocalTTL     time.Duration
	EmptyTTL     time.Duration
	LocalMaxSize int

	// EmptyValueMark is the sentinel string standing in for absent data.
	EmptyValueMark string
	// KeyField names the entity field a key resolver may derive keys from.
	KeyField string
	// BusinessKey names the field correlating batch loader rows back to
	// requested identifiers.
	BusinessKey string
}

// BatchKeyField is the entity field batch results are correlated by:
// BusinessKey when configured, KeyField otherwise.
func (c *Resolved) BatchKeyField() string {
	if c.BusinessKey != "" {
		return c.BusinessKey
	}
	return c.KeyField
}

// UseL1 reports whether the in-process tier is enabled.
func (c *Resolved) UseL1() bool {
	return strings.Contains(c.Policy, "L1")
}

// UseL2 reports whether the distributed tier is enabled.
func (c *Resolved) UseL2() bool {
	return strings.Contains(c.Policy, "L2")
}

// PopulateL1FromL2 reports whether an L2 hit should be promoted into L1.
// The convention is to promote whenever both tiers are enabled.
func (c *Resolved) PopulateL1FromL2() bool {
	return c.UseL1() && c.UseL2()
}

// NewEntity returns a pointer to a fresh zero value of the entity type,
// ready for deserialization.
func (c *Resolved) NewEntity() any {
	return reflect.New(c.EntityType).Interface()
}

// ttlEnabled implements the nullable-TTL convention: zero disables the tier,
// NeverExpire keeps it without expiry, any other negative value is invalid
// and also disables it.
func ttlEnabled(d time.Duration) bool {
	if d == 0 {
		return false
	}
	if d < 0 {
		return d == NeverExpire
	}
	return true
}
