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
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
	"github.com/vevoly/multicache/pkg/strategy"
)

type account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return newTestEngineOn(t, miniredis.RunT(t), opts...)
}

func newTestEngineOn(t *testing.T, mr *miniredis.Miniredis, opts ...Option) *Engine {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	root := &config.RootProperties{
		Defaults: config.Properties{
			RedisTTL: "1h",
			LocalTTL: "1m",
			EmptyTTL: "1m",
		},
		Configs: map[string]config.Properties{
			"account":       {Namespace: "test:account"},
			"accountLocal":  {Namespace: "test:local", StoragePolicy: config.PolicyL1DB},
			"accountRemote": {Namespace: "test:remote", StoragePolicy: config.PolicyL2DB},
			"roster":        {Namespace: "test:roster", StorageShape: config.ShapeSet},
			"profile":       {Namespace: "test:profile", StorageShape: config.ShapeHash},
			"profileLocal":  {Namespace: "test:profilelocal", StorageShape: config.ShapeHash, StoragePolicy: config.PolicyL1DB},
			"ranking":       {Namespace: "test:ranking", StorageShape: config.ShapeSortedSet},
			"report":        {Namespace: "test:report", StorageShape: config.ShapePage},
		},
	}
	resolver := config.NewResolver(root, map[string]any{
		"account":       account{},
		"accountLocal":  account{},
		"accountRemote": account{},
		"roster":        account{},
		"profile":       account{},
		"profileLocal":  account{},
		"ranking":       account{},
		"report":        account{},
	})

	base := []Option{
		WithLockTimings(2*time.Second, 5*time.Second),
		WithBatchLockTimings(2*time.Second, 5*time.Second),
		WithFollowerRetry(50 * time.Millisecond),
	}
	e := New(rediscache.NewClient(rdb), rediscache.NewLocker(rdb), resolver, strategy.Default(), append(base, opts...)...)
	t.Cleanup(e.Close)
	return e
}

func TestFetchPopulatesTiers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{ID: "u1", Name: "alice"}, nil
	}

	got, err := Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(1), calls.Load())

	// Second read is served by the tiers.
	got, err = Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchAbsentCachesSentinel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return nil, nil
	}

	got, err := Fetch(ctx, e, "account", []string{"ghost"}, loader)
	require.NoError(t, err)
	require.Nil(t, got)

	// The sentinel absorbs the repeat lookup.
	got, err = Fetch(ctx, e, "account", []string{"ghost"}, loader)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchLoaderErrorPropagates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	errDown := errors.New("source of truth is down")

	_, err := Fetch(ctx, e, "account", []string{"u1"}, func(ctx context.Context) (*account, error) {
		return nil, errDown
	})
	require.ErrorIs(t, err, errDown)

	// A failed load must not leave a value or sentinel behind.
	var calls atomic.Int32
	got, err := Fetch(ctx, e, "account", []string{"u1"}, func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{ID: "u1", Name: "alice"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchUnknownCache(t *testing.T) {
	e := newTestEngine(t)
	_, err := Fetch(context.Background(), e, "nope", []string{"u1"}, func(ctx context.Context) (*account, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestFetchStampedeSingleLoad(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return &account{ID: "hot", Name: "popular"}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*account, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(ctx, e, "account", []string{"hot"}, loader)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "exactly one goroutine should reach the loader")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "popular", results[i].Name)
	}
}

func TestFetchLocalOnlyStampedeSingleLoad(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return &account{ID: "hot", Name: "popular"}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*account, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(ctx, e, "accountLocal", []string{"hot"}, loader)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "a local-only cache still bounds the stampede to one load")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "popular", results[i].Name)
	}
}

func TestFetchSlowLeaderFollowerReturnsAbsent(t *testing.T) {
	for _, cacheName := range []string{"account", "accountLocal"} {
		t.Run(cacheName, func(t *testing.T) {
			e := newTestEngine(t, WithLockTimings(200*time.Millisecond, 5*time.Second))
			ctx := context.Background()
			var calls atomic.Int32
			leaderHolds := make(chan struct{})
			done := make(chan struct{})

			go func() {
				defer close(done)
				got, err := Fetch(ctx, e, cacheName, []string{"slow"}, func(ctx context.Context) (*account, error) {
					calls.Add(1)
					close(leaderHolds)
					time.Sleep(time.Second)
					return &account{ID: "slow", Name: "alice"}, nil
				})
				assert.NoError(t, err)
				if assert.NotNil(t, got) {
					assert.Equal(t, "alice", got.Name)
				}
			}()

			// The leader is mid-load: the wait window and the single
			// retry both expire with nothing cached yet, so the lock
			// loser settles for absent without reaching the loader.
			<-leaderHolds
			got, err := Fetch(ctx, e, cacheName, []string{"slow"}, func(ctx context.Context) (*account, error) {
				t.Error("lock loser must not reach the loader")
				return nil, nil
			})
			require.NoError(t, err)
			require.Nil(t, got)
			require.Equal(t, int32(1), calls.Load())

			<-done
			got, err = Fetch(ctx, e, cacheName, []string{"slow"}, func(ctx context.Context) (*account, error) {
				t.Error("finished leader should have populated the tiers")
				return nil, nil
			})
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, "alice", got.Name)
			require.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestFetchRemoteOnlyPolicy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{ID: "u1", Name: "alice"}, nil
	}

	_, err := Fetch(ctx, e, "accountRemote", []string{"u1"}, loader)
	require.NoError(t, err)
	got, err := Fetch(ctx, e, "accountRemote", []string{"u1"}, loader)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(1), calls.Load())

	// The local tier is never created for an L2-only cache.
	_, ok := e.StatsFor("accountRemote")
	require.False(t, ok)
}

func TestEvictRemovesEveryTier(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{ID: "u1", Name: "alice"}, nil
	}

	_, err := Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)

	require.NoError(t, e.Evict(ctx, "account", "u1"))

	_, err = Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load(), "eviction should force a reload")

	// Evicting an absent key is a no-op, fully qualified keys included.
	require.NoError(t, e.Evict(ctx, "account", "never-cached"))
	require.NoError(t, e.Evict(ctx, "account", "test:account:never-cached"))

	require.Error(t, e.Evict(ctx, "nope", "u1"))
}

func TestHandleInvalidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cfg, _, err := e.resolve("account")
	require.NoError(t, err)
	const key = "test:account:u1"

	seed := func() {
		e.local(cfg).cache.Set(key, &account{ID: "u1", Name: "alice"})
	}
	cached := func() bool {
		_, ok := e.local(cfg).cache.Get(key)
		return ok
	}
	payload := func(m InvalidationMessage) string {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		return string(data)
	}

	// A remote sender's message drops the local copy.
	seed()
	e.handleInvalidation(ctx, payload(InvalidationMessage{CacheName: "account", FullKey: key, Sender: "remote-node"}))
	require.False(t, cached())

	// Our own broadcast is skipped.
	seed()
	e.handleInvalidation(ctx, payload(InvalidationMessage{CacheName: "account", FullKey: key, Sender: e.InstanceID()}))
	require.True(t, cached())

	// Without a cache name the key prefix resolves the config.
	e.handleInvalidation(ctx, payload(InvalidationMessage{FullKey: key, Sender: "remote-node"}))
	require.False(t, cached())

	// Malformed and incomplete payloads are dropped, not fatal.
	seed()
	e.handleInvalidation(ctx, "{not json")
	e.handleInvalidation(ctx, payload(InvalidationMessage{CacheName: "account", Sender: "remote-node"}))
	require.True(t, cached())
}

func TestInvalidationAcrossEngines(t *testing.T) {
	mr := miniredis.RunT(t)
	publisher := newTestEngineOn(t, mr)
	listener := newTestEngineOn(t, mr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.StartInvalidationListener(ctx)

	cfg, _, err := listener.resolve("account")
	require.NoError(t, err)
	const key = "test:account:u1"
	listener.local(cfg).cache.Set(key, &account{ID: "u1", Name: "alice"})

	// Eviction is idempotent, so republish until the listener catches it.
	require.Eventually(t, func() bool {
		require.NoError(t, publisher.Evict(ctx, "account", "u1"))
		_, ok := listener.local(cfg).cache.Get(key)
		return !ok
	}, 2*time.Second, 20*time.Millisecond, "remote eviction should reach the listener's local tier")
}

func TestFetchBatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context, missing []string) (map[string]*account, error) {
		calls.Add(1)
		require.ElementsMatch(t, []string{"u1", "u2", "u3"}, missing)
		return map[string]*account{
			"u1": {ID: "u1", Name: "alice"},
			"u2": {ID: "u2", Name: "bob"},
		}, nil
	}

	got, err := FetchBatch(ctx, e, "account", []string{"u1", "u2", "u3", "u1"}, loader)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got["u1"].Name)
	require.Equal(t, "bob", got["u2"].Name)
	require.NotContains(t, got, "u3")

	// Values and the u3 sentinel all came out of the tiers this time.
	got, err = FetchBatch(ctx, e, "account", []string{"u1", "u2", "u3"}, loader)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchBatchSliceCorrelatesByKeyField(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	got, err := FetchBatchSlice(ctx, e, "account", []string{"u1", "u2"}, func(ctx context.Context, missing []string) ([]*account, error) {
		return []*account{
			{ID: "u2", Name: "bob"},
			{ID: "u1", Name: "alice"},
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "alice", got["u1"].Name)
	require.Equal(t, "bob", got["u2"].Name)
}

func TestFetchBatchLocalOnlyStampedeSingleLoad(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context, missing []string) (any, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return map[string]*account{
			"u1": {ID: "u1", Name: "alice"},
			"u2": {ID: "u2", Name: "bob"},
		}, nil
	}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.FetchBatch(ctx, "accountLocal", []string{"u1", "u2"}, loader)
			assert.NoError(t, err)
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load(), "local-only batch must elect a single loader")
}

func TestFetchBatchKeyedResolver(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var resolved atomic.Int32

	got, err := e.FetchBatchKeyed(ctx, "account", []string{"u1"}, func(id string) string {
		resolved.Add(1)
		return "v2:" + id
	}, func(ctx context.Context, missing []string) (any, error) {
		return map[string]*account{"u1": {ID: "u1", Name: "alice"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int32(1), resolved.Load(), "resolver runs exactly once per identifier")

	// The resolver's key, namespace-qualified, is what landed in Redis.
	v, err := Fetch(ctx, e, "account", []string{"v2:u1"}, func(ctx context.Context) (*account, error) {
		t.Fatal("resolved key should already be cached")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", v.Name)
}

func TestFetchBatchUnsupportedShape(t *testing.T) {
	e := newTestEngine(t)
	_, err := FetchBatch(context.Background(), e, "report", []string{"r1"}, func(ctx context.Context, missing []string) (map[string]*account, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, strategy.ErrUnsupportedOperation)
}

func TestFetchUnion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context, missing []string) (map[string][]*account, error) {
		calls.Add(1)
		require.ElementsMatch(t, []string{"r1", "r2", "r3"}, missing)
		return map[string][]*account{
			"r1": {{ID: "u1", Name: "alice"}, {ID: "u2", Name: "bob"}},
			"r2": {{ID: "u2", Name: "bob"}, {ID: "u3", Name: "carol"}},
		}, nil
	}

	members, err := FetchUnion(ctx, e, "roster", []string{"r1", "r2", "r3"}, loader)
	require.NoError(t, err)

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	require.Equal(t, []string{"u1", "u2", "u3"}, ids, "shared members should be deduplicated")

	// r1 and r2 are now cached sets, r3 a sentinel.
	members, err = FetchUnion(ctx, e, "roster", []string{"r1", "r2", "r3"}, loader)
	require.NoError(t, err)
	require.Len(t, members, 3)
	require.Equal(t, int32(1), calls.Load())
}

func TestFetchUnionUnsupportedShape(t *testing.T) {
	e := newTestEngine(t)
	_, err := FetchUnion(context.Background(), e, "account", []string{"r1"}, func(ctx context.Context, missing []string) (map[string][]*account, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, strategy.ErrUnsupportedOperation)
}

func TestFetchHashField(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return &account{ID: "u1", Name: "alice"}, nil
	}

	got, err := FetchHashField(ctx, e, "profile", []string{"org1"}, "u1", loader)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)

	got, err = FetchHashField(ctx, e, "profile", []string{"org1"}, "u1", loader)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(1), calls.Load())

	// Absent fields are not sentinel-cached: every miss goes back to the
	// loader.
	var misses atomic.Int32
	absent := func(ctx context.Context) (*account, error) {
		misses.Add(1)
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		got, err = FetchHashField(ctx, e, "profile", []string{"org1"}, "ghost", absent)
		require.NoError(t, err)
		require.Nil(t, got)
	}
	require.Equal(t, int32(2), misses.Load())
}

func TestFetchHashFieldLocalOnlyStampedeSingleLoad(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32
	loader := func(ctx context.Context) (*account, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		return &account{ID: "u1", Name: "alice"}, nil
	}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := FetchHashField(ctx, e, "profileLocal", []string{"org1"}, "u1", loader)
			assert.NoError(t, err)
			if assert.NotNil(t, got) {
				assert.Equal(t, "alice", got.Name)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), calls.Load(), "local-only field fetch must elect a single loader")
}

func TestFetchSortedSetNotScorablePropagates(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newTestEngineOn(t, mr)
	ctx := context.Background()

	// Write path: the loaded entities cannot provide a score.
	_, err := e.Fetch(ctx, "ranking", []string{"board"}, func(ctx context.Context) (any, error) {
		return []*account{{ID: "u1"}}, nil
	})
	require.ErrorIs(t, err, strategy.ErrNotScorable)

	// Read path: a populated key decodes into an entity that cannot carry
	// the score back. A wrong entity type must surface as an error, not
	// degrade into a permanent miss that hides behind the loader.
	mr.ZAdd("test:ranking:board", 1, "u1")
	_, err = e.Fetch(ctx, "ranking", []string{"board"}, func(ctx context.Context) (any, error) {
		t.Fatal("a present key must not reach the loader")
		return nil, nil
	})
	require.ErrorIs(t, err, strategy.ErrNotScorable)
}

func TestPreload(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n := e.Preload(ctx, "account", map[string]any{
		"u1": &account{ID: "u1", Name: "alice"},
		"u2": (*account)(nil),
	})
	require.Equal(t, 1, n, "nil entries are skipped, never written as sentinels")

	var calls atomic.Int32
	got, err := Fetch(ctx, e, "account", []string{"u1"}, func(ctx context.Context) (*account, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)
	require.Equal(t, int32(0), calls.Load())

	require.Equal(t, 0, e.Preload(ctx, "account", map[string]any{}))
	require.Equal(t, -1, e.Preload(ctx, "nope", map[string]any{"u1": &account{ID: "u1"}}))
}

func TestPreloaderRunsOnRegister(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := NewPreloader(e)
	defer p.Stop()

	var supplies atomic.Int32
	err := p.Register(ctx, "@every 1h", "account", func(ctx context.Context) (map[string]any, error) {
		supplies.Add(1)
		return map[string]any{"u1": &account{ID: "u1", Name: "alice"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), supplies.Load(), "registration runs the supplier once immediately")

	got, err := Fetch(ctx, e, "account", []string{"u1"}, func(ctx context.Context) (*account, error) {
		t.Fatal("preloaded key must not reach the loader")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "alice", got.Name)

	require.Error(t, p.Register(ctx, "not a cron spec", "account", func(ctx context.Context) (map[string]any, error) {
		return nil, nil
	}))
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	loader := func(ctx context.Context) (*account, error) {
		return &account{ID: "u1", Name: "alice"}, nil
	}

	_, err := Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)
	_, err = Fetch(ctx, e, "account", []string{"u1"}, loader)
	require.NoError(t, err)

	st, ok := e.StatsFor("account")
	require.True(t, ok)
	assert.Equal(t, "account", st.Name)
	assert.Equal(t, 1, st.Size)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(2), st.RequestsTotal)
	assert.InDelta(t, 0.5, st.HitRatio, 0.001)

	_, ok = e.StatsFor("roster")
	require.False(t, ok, "untouched caches have no stats yet")

	all := e.Stats()
	require.Len(t, all, 1)
	assert.Equal(t, "account", all[0].Name)
}

func TestCacheableMiddleware(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var calls atomic.Int32

	getAccount := Cacheable(e, CacheableConfig{Cache: "account"}, func(ctx context.Context, keyParts ...string) (*account, error) {
		calls.Add(1)
		return &account{ID: keyParts[0], Name: "alice"}, nil
	})

	for i := 0; i < 3; i++ {
		got, err := getAccount(ctx, "m1")
		require.NoError(t, err)
		require.Equal(t, "alice", got.Name)
	}
	require.Equal(t, int32(1), calls.Load())

	var batchCalls atomic.Int32
	listAccounts := BatchCacheable(e, CacheableConfig{Cache: "account"}, func(ctx context.Context, missing []string) (map[string]*account, error) {
		batchCalls.Add(1)
		out := make(map[string]*account, len(missing))
		for _, id := range missing {
			out[id] = &account{ID: id, Name: "n-" + id}
		}
		return out, nil
	})

	got, err := listAccounts(ctx, []string{"b1", "b2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	got, err = listAccounts(ctx, []string{"b1", "b2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int32(1), batchCalls.Load())
}
