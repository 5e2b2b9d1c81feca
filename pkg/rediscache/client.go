package rediscache

import (
	"context"
	"sync"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis universal client with the operations the cache
// tiers need. It works against standalone, sentinel, and cluster deployments
// alike.
type Client struct {
	rdb redis.UniversalClient
}

func NewClient(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Raw exposes the underlying go-redis client for operations the wrapper
// does not cover.
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, errs.WrapMsg(err, "exists", "key", key)
	}
	return n > 0, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errs.WrapMsg(err, "del", "keys", keys)
	}
	return nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return errs.WrapMsg(err, "expire", "key", key)
	}
	return nil
}

// Get reads a string key. The second return reports presence, redis.Nil is
// not an error.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.WrapMsg(err, "get", "key", key)
	}
	return v, true, nil
}

// Set writes a string key. ttl <= 0 leaves the key without expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.WrapMsg(err, "set", "key", key)
	}
	return nil
}

// MGet reads many string keys in one pipelined round trip per slot. The
// result maps only the keys that exist.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(keys))
	var mu sync.Mutex
	err := ProcessKeysBySlot(ctx, c.rdb, keys, func(ctx context.Context, _ int64, slotKeys []string) error {
		values, err := c.rdb.MGet(ctx, slotKeys...).Result()
		if err != nil {
			return errs.WrapMsg(err, "mget", "keys", slotKeys)
		}
		mu.Lock()
		defer mu.Unlock()
		for i, v := range values {
			if s, ok := v.(string); ok {
				out[slotKeys[i]] = s
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TypeOf returns the Redis type of key, "none" when absent.
func (c *Client) TypeOf(ctx context.Context, key string) (string, error) {
	t, err := c.rdb.Type(ctx, key).Result()
	if err != nil {
		return "", errs.WrapMsg(err, "type", "key", key)
	}
	return t, nil
}

func (c *Client) GetList(ctx context.Context, key string) ([]string, error) {
	values, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "lrange", "key", key)
	}
	return values, nil
}

func (c *Client) GetSet(ctx context.Context, key string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "smembers", "key", key)
	}
	return members, nil
}

func (c *Client) GetZSetWithScores(ctx context.Context, key string) ([]redis.Z, error) {
	members, err := c.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "zrange", "key", key)
	}
	return members, nil
}

func (c *Client) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.WrapMsg(err, "hget", "key", key, "field", field)
	}
	return v, true, nil
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "hgetall", "key", key)
	}
	return fields, nil
}

// HSetField writes one hash field and refreshes the whole-hash TTL. Hash
// expiry in Redis is key-scoped, so every field write renews the key.
func (c *Client) HSetField(ctx context.Context, key, field, value string, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, field, value)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.WrapMsg(err, "hset field", "key", key, "field", field)
	}
	return nil
}

// UnionWithMisses runs the atomic union-with-miss-detection script.
func (c *Client) UnionWithMisses(ctx context.Context, keys []string) (members, missing []string, err error) {
	return UnionWithMisses(ctx, c.rdb, keys)
}

func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return errs.WrapMsg(err, "publish", "channel", channel)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channel)
}

// Batch opens a write session backed by one pipeline.
func (c *Client) Batch() *Batch {
	return &Batch{pipe: c.rdb.Pipeline()}
}
