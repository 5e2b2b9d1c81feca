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
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rankedUser struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func (r *rankedUser) CacheID() string           { return r.ID }
func (r *rankedUser) CacheScore() float64       { return r.Score }
func (r *rankedUser) SetCacheID(id string)      { r.ID = id }
func (r *rankedUser) SetCacheScore(s float64)   { r.Score = s }

func newTestClient(t *testing.T) *rediscache.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rediscache.NewClient(rdb)
}

func testConfig(shape string, entity any) *config.Resolved {
	return &config.Resolved{
		Name:           "userCache",
		Namespace:      "cache:user",
		EntityType:     reflect.TypeOf(entity),
		Shape:          shape,
		Policy:         config.PolicyL1L2DB,
		RedisTTL:       time.Hour,
		LocalTTL:       time.Second * 30,
		EmptyTTL:       time.Minute,
		EmptyValueMark: config.DefaultEmptyValueMark,
	}
}

func TestScalarRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeScalar, user{})
	s := NewScalar()

	v, err := s.Read(ctx, cli, "cache:user:1", cfg)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Write(ctx, cli, "cache:user:1", &user{ID: "1", Name: "alice"}, cfg))
	v, err = s.Read(ctx, cli, "cache:user:1", cfg)
	require.NoError(t, err)
	assert.Equal(t, &user{ID: "1", Name: "alice"}, v)
}

func TestScalarSentinel(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeScalar, user{})
	s := NewScalar()

	require.NoError(t, s.Write(ctx, cli, "cache:user:404", nil, cfg))
	v, err := s.Read(ctx, cli, "cache:user:404", cfg)
	require.NoError(t, err)
	assert.True(t, IsEmptyValue(v, cfg.EmptyValueMark))
}

func TestScalarReadMany(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeScalar, user{})
	s := NewScalar()

	b := cli.Batch()
	require.NoError(t, s.WriteMany(ctx, b, map[string]any{
		"cache:user:1": &user{ID: "1", Name: "alice"},
		"cache:user:2": &user{ID: "2", Name: "bob"},
	}, cfg))
	require.NoError(t, s.WriteManyEmpty(ctx, b, []string{"cache:user:404"}, cfg))
	require.NoError(t, b.Exec(ctx))

	res, err := s.ReadMany(ctx, cli, []string{"cache:user:1", "cache:user:2", "cache:user:404", "cache:user:absent"}, cfg)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, &user{ID: "1", Name: "alice"}, res["cache:user:1"].Value)
	assert.Equal(t, &user{ID: "2", Name: "bob"}, res["cache:user:2"].Value)
	assert.True(t, res["cache:user:404"].Empty)
	_, found := res["cache:user:absent"]
	assert.False(t, found)
}

func TestListRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeList, user{})
	s := NewList()

	require.NoError(t, s.Write(ctx, cli, "cache:user:friends:1", []*user{
		{ID: "2", Name: "bob"},
		{ID: "3", Name: "carol"},
	}, cfg))
	v, err := s.Read(ctx, cli, "cache:user:friends:1", cfg)
	require.NoError(t, err)
	items, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
	assert.Contains(t, items, any(&user{ID: "2", Name: "bob"}))
}

func TestListEmptyWriteBecomesSentinel(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeList, user{})
	s := NewList()

	require.NoError(t, s.Write(ctx, cli, "k", []*user{{ID: "1"}}, cfg))
	require.NoError(t, s.Write(ctx, cli, "k", []*user{}, cfg))

	v, err := s.Read(ctx, cli, "k", cfg)
	require.NoError(t, err)
	assert.True(t, IsEmptyValue(v, cfg.EmptyValueMark))
}

func TestSetReadUnion(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeSet, user{})
	s := NewSet().(interface {
		Strategy
		UnionReader
	})

	require.NoError(t, s.Write(ctx, cli, "cache:user:tags:1", []*user{{ID: "a"}}, cfg))
	require.NoError(t, s.Write(ctx, cli, "cache:user:tags:2", []*user{{ID: "b"}}, cfg))
	require.NoError(t, s.Write(ctx, cli, "cache:user:tags:3", nil, cfg)) // sentinel

	members, missing, err := s.ReadUnion(ctx, cli, []string{
		"cache:user:tags:1", "cache:user:tags:2", "cache:user:tags:3", "cache:user:tags:4",
	}, cfg)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, []string{"cache:user:tags:4"}, missing)

	decoded, err := DecodeMembers(cfg, members)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestSortedSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeSortedSet, rankedUser{})
	s := NewSortedSet()

	require.NoError(t, s.Write(ctx, cli, "rank", []*rankedUser{
		{ID: "1", Score: 10},
		{ID: "2", Score: 5},
	}, cfg))

	v, err := s.Read(ctx, cli, "rank", cfg)
	require.NoError(t, err)
	items, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	// ZRANGE returns ascending by score.
	assert.Equal(t, &rankedUser{ID: "2", Score: 5}, items[0])
	assert.Equal(t, &rankedUser{ID: "1", Score: 10}, items[1])
}

func TestSortedSetRejectsReadMany(t *testing.T) {
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeSortedSet, rankedUser{})
	_, err := NewSortedSet().ReadMany(context.Background(), cli, []string{"a"}, cfg)
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
}

func TestSortedSetRejectsNotScorable(t *testing.T) {
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeSortedSet, user{})
	err := NewSortedSet().Write(context.Background(), cli, "rank", []*user{{ID: "1"}}, cfg)
	assert.True(t, errors.Is(err, ErrNotScorable))
}

func TestHashMapRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeHash, user{})
	s := NewHashMap().(interface {
		Strategy
		FieldStrategy
	})

	require.NoError(t, s.Write(ctx, cli, "h", map[string]*user{
		"1": {ID: "1", Name: "alice"},
		"2": {ID: "2", Name: "bob"},
	}, cfg))

	v, err := s.Read(ctx, cli, "h", cfg)
	require.NoError(t, err)
	fields, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, &user{ID: "1", Name: "alice"}, fields["1"])

	fv, err := s.ReadField(ctx, cli, "h", "2", cfg)
	require.NoError(t, err)
	assert.Equal(t, &user{ID: "2", Name: "bob"}, fv)

	fv, err = s.ReadField(ctx, cli, "h", "absent", cfg)
	require.NoError(t, err)
	assert.Nil(t, fv)

	require.NoError(t, s.WriteField(ctx, cli, "h", "3", &user{ID: "3", Name: "carol"}, cfg))
	fv, err = s.ReadField(ctx, cli, "h", "3", cfg)
	require.NoError(t, err)
	assert.Equal(t, &user{ID: "3", Name: "carol"}, fv)
}

func TestHashMapSentinel(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapeHash, user{})
	s := NewHashMap()

	require.NoError(t, s.Write(ctx, cli, "h", nil, cfg))
	v, err := s.Read(ctx, cli, "h", cfg)
	require.NoError(t, err)
	assert.True(t, IsEmptyValue(v, cfg.EmptyValueMark))
}

func TestPageRejectsBatchOps(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)
	cfg := testConfig(config.ShapePage, user{})
	s := NewPage()

	_, err := s.ReadMany(ctx, cli, []string{"a"}, cfg)
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	assert.True(t, errors.Is(s.WriteMany(ctx, cli.Batch(), nil, cfg), ErrUnsupportedOperation))
	assert.True(t, errors.Is(s.WriteManyEmpty(ctx, cli.Batch(), nil, cfg), ErrUnsupportedOperation))
}

func TestRegistry(t *testing.T) {
	r := Default()
	for _, shape := range []string{
		config.ShapeScalar, config.ShapeList, config.ShapeSet,
		config.ShapeSortedSet, config.ShapeHash, config.ShapePage,
	} {
		s, err := r.Get(shape)
		require.NoError(t, err)
		assert.Equal(t, shape, s.Shape())
	}
	_, err := r.Get("GEO")
	assert.True(t, errors.Is(err, ErrUnsupportedShape))
}
