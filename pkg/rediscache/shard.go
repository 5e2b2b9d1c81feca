package rediscache

import (
	"context"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize       = 50
	defaultConcurrentLimit = 3
)

// ShardManager groups keys by Redis cluster hash slot so that batch
// operations touch one node per pipeline. On a standalone or sentinel
// deployment every key lands in slot 0 and the grouping is a no-op.
type ShardManager struct {
	rdb    redis.UniversalClient
	config *shardConfig
}

type shardConfig struct {
	batchSize       int
	continueOnError bool
	concurrentLimit int
}

type ShardOption func(c *shardConfig)

func NewShardManager(rdb redis.UniversalClient, opts ...ShardOption) *ShardManager {
	config := &shardConfig{
		batchSize:       defaultBatchSize,
		continueOnError: false,
		concurrentLimit: defaultConcurrentLimit,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &ShardManager{rdb: rdb, config: config}
}

// WithBatchSize caps how many keys one processFunc call receives.
func WithBatchSize(size int) ShardOption {
	return func(c *shardConfig) {
		c.batchSize = size
	}
}

// WithContinueOnError keeps processing remaining batches after a failure
// instead of stopping at the first error.
func WithContinueOnError(continueOnError bool) ShardOption {
	return func(c *shardConfig) {
		c.continueOnError = continueOnError
	}
}

// WithConcurrentLimit bounds how many batches run at once.
func WithConcurrentLimit(limit int) ShardOption {
	return func(c *shardConfig) {
		c.concurrentLimit = limit
	}
}

// ProcessKeysBySlot splits keys into same-slot batches and runs processFunc
// over them concurrently.
func (m *ShardManager) ProcessKeysBySlot(ctx context.Context, keys []string, processFunc func(ctx context.Context, slot int64, keys []string) error) error {
	slots, err := groupKeysBySlot(ctx, m.rdb, keys)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.concurrentLimit)

	for slot, slotKeys := range slots {
		for _, batch := range splitIntoBatches(slotKeys, m.config.batchSize) {
			slot, batch := slot, batch
			g.Go(func() error {
				if err := processFunc(ctx, slot, batch); err != nil {
					log.ZWarn(ctx, "slot batch failed", err, "slot", slot, "keys", batch)
					if !m.config.continueOnError {
						return err
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// groupKeysBySlot asks the cluster for each key's hash slot through one
// pipeline of CLUSTER KEYSLOT calls. Non-cluster clients skip the round trip.
func groupKeysBySlot(ctx context.Context, rdb redis.UniversalClient, keys []string) (map[int64][]string, error) {
	slots := make(map[int64][]string)

	clusterClient, isCluster := rdb.(*redis.ClusterClient)
	if !isCluster || len(keys) <= 1 {
		slots[0] = keys
		return slots, nil
	}

	pipe := clusterClient.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.ClusterKeySlot(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errs.WrapMsg(err, "get slot err")
	}
	for i, cmd := range cmds {
		slot, err := cmd.Result()
		if err != nil {
			return nil, errs.WrapMsg(err, "get slot err", "key", keys[i])
		}
		slots[slot] = append(slots[slot], keys[i])
	}
	return slots, nil
}

func splitIntoBatches(keys []string, batchSize int) [][]string {
	var batches [][]string
	for batchSize < len(keys) {
		keys, batches = keys[batchSize:], append(batches, keys[0:batchSize:batchSize])
	}
	return append(batches, keys)
}

// ProcessKeysBySlot is the one-shot variant for callers that do not hold a
// ShardManager.
func ProcessKeysBySlot(ctx context.Context, rdb redis.UniversalClient, keys []string, processFunc func(ctx context.Context, slot int64, keys []string) error, opts ...ShardOption) error {
	return NewShardManager(rdb, opts...).ProcessKeysBySlot(ctx, keys, processFunc)
}
