package rediscache

import (
	"context"
	"time"

	"github.com/openimsdk/tools/errs"
	"github.com/redis/go-redis/v9"
)

// Batch queues heterogeneous write commands and submits them in one
// pipeline. It is a single-use session: queue, Exec, discard. Not safe for
// concurrent use.
type Batch struct {
	pipe redis.Pipeliner
}

func (b *Batch) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 0
	}
	b.pipe.Set(ctx, key, value, ttl)
}

func (b *Batch) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.pipe.Del(ctx, keys...)
}

func (b *Batch) Expire(ctx context.Context, key string, ttl time.Duration) {
	if ttl > 0 {
		b.pipe.Expire(ctx, key, ttl)
	}
}

// ReplaceList swaps the full contents of a list key.
func (b *Batch) ReplaceList(ctx context.Context, key string, values []string, ttl time.Duration) {
	b.pipe.Del(ctx, key)
	if len(values) == 0 {
		return
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	b.pipe.RPush(ctx, key, args...)
	b.Expire(ctx, key, ttl)
}

// ReplaceSet swaps the full contents of a set key.
func (b *Batch) ReplaceSet(ctx context.Context, key string, members []string, ttl time.Duration) {
	b.pipe.Del(ctx, key)
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, v := range members {
		args[i] = v
	}
	b.pipe.SAdd(ctx, key, args...)
	b.Expire(ctx, key, ttl)
}

// ReplaceZSet swaps the full contents of a sorted-set key.
func (b *Batch) ReplaceZSet(ctx context.Context, key string, members []redis.Z, ttl time.Duration) {
	b.pipe.Del(ctx, key)
	if len(members) == 0 {
		return
	}
	b.pipe.ZAdd(ctx, key, members...)
	b.Expire(ctx, key, ttl)
}

// ReplaceHash swaps the full contents of a hash key.
func (b *Batch) ReplaceHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) {
	b.pipe.Del(ctx, key)
	if len(fields) == 0 {
		return
	}
	b.pipe.HSet(ctx, key, fields)
	b.Expire(ctx, key, ttl)
}

// Exec submits every queued command in one round trip.
func (b *Batch) Exec(ctx context.Context) error {
	if b.pipe.Len() == 0 {
		return nil
	}
	if _, err := b.pipe.Exec(ctx); err != nil {
		return errs.WrapMsg(err, "batch exec")
	}
	return nil
}
