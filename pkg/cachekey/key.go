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

// Package cachekey builds the cache keys, lock keys and batch fingerprints
// shared by every tier. Key construction is deterministic and order
// sensitive: composite keys must always list their parts in the same order.
package cachekey

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/openimsdk/tools/utils/datautil"
)

const (
	// Separator joins the namespace and the key parts.
	Separator = ":"

	// singleLockPrefix scopes the distributed lock taken by the single-key
	// leader/follower load.
	singleLockPrefix = "multicache:lock:"

	// batchLockPrefix scopes the distributed lock taken by the batch load.
	batchLockPrefix = "multicache:lock:multi:"
)

// BuildKey returns namespace + ":" + part1 + ":" + part2 + ...
// With no parts it returns the namespace itself.
func BuildKey(namespace string, parts ...string) string {
	if len(parts) == 0 {
		return namespace
	}
	return namespace + Separator + strings.Join(parts, Separator)
}

// IsFullKey reports whether raw already carries the namespace prefix, as keys
// handed back by the invalidation listener do. BuildKey must not be applied
// twice to such keys.
func IsFullKey(namespace, raw string) bool {
	return raw == namespace || strings.HasPrefix(raw, namespace+Separator)
}

// Normalize returns raw unchanged when it is already fully qualified,
// otherwise it prefixes it with the namespace.
func Normalize(namespace, raw string) string {
	if IsFullKey(namespace, raw) {
		return raw
	}
	return namespace + Separator + raw
}

// SingleLockKey derives the lock key used by the single-key load from the
// full cache key.
func SingleLockKey(fullKey string) string {
	return singleLockPrefix + fullKey
}

// BatchLockKey derives the lock key for a batch load from the namespace and
// the fingerprint of the missing identifier set.
func BatchLockKey(namespace, fingerprint string) string {
	return batchLockPrefix + namespace + Separator + fingerprint
}

// Fingerprint returns a stable hex digest of an identifier set. The ids are
// deduplicated and sorted before hashing so that two requests for the same
// missing set serialize on the same lock no matter how the ids were ordered.
func Fingerprint(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := datautil.Distinct(ids)
	sort.Strings(sorted)
	sum := md5.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}
