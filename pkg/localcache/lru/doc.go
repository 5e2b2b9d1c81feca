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

// Package lru provides the LRU stores backing the in-process cache tier.
//
// Two expiry models are available: LayLRU checks deadlines lazily on access,
// ExpirationLRU sweeps expired entries in the background. NewSlotLRU shards
// either model over independent instances to reduce lock contention under
// concurrent load.
package lru // import "github.com/vevoly/multicache/pkg/localcache/lru"
