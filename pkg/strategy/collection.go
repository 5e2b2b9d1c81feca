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
	"sync"

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"

	"github.com/vevoly/multicache/pkg/config"
	"github.com/vevoly/multicache/pkg/rediscache"
)

type collectionCmd interface {
	members() ([]string, error)
}

// readManyCollections batch-reads list or set keys. Each slot batch runs two
// pipelines: one of TYPE probes, then one of range reads for keys of the
// expected type and GETs for string keys, which may hold the sentinel.
// Corrupt entries degrade to a per-key miss, only transport errors fail the
// batch.
func readManyCollections(
	ctx context.Context,
	cli *rediscache.Client,
	keys []string,
	cfg *config.Resolved,
	wantType string,
	queue func(ctx context.Context, pipe redis.Pipeliner, key string) collectionCmd,
) (map[string]Result, error) {
	out := make(map[string]Result, len(keys))
	var mu sync.Mutex

	err := rediscache.ProcessKeysBySlot(ctx, cli.Raw(), keys, func(ctx context.Context, _ int64, slotKeys []string) error {
		pipe := cli.Raw().Pipeline()
		typeCmds := make([]*redis.StatusCmd, len(slotKeys))
		for i, key := range slotKeys {
			typeCmds[i] = pipe.Type(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return errs.WrapMsg(err, "type pipeline", "keys", slotKeys)
		}

		readPipe := cli.Raw().Pipeline()
		collCmds := make(map[string]collectionCmd)
		strCmds := make(map[string]*redis.StringCmd)
		for i, key := range slotKeys {
			switch typeCmds[i].Val() {
			case wantType:
				collCmds[key] = queue(ctx, readPipe, key)
			case "string":
				strCmds[key] = readPipe.Get(ctx, key)
			}
		}
		if len(collCmds) == 0 && len(strCmds) == 0 {
			return nil
		}
		if _, err := readPipe.Exec(ctx); err != nil && err != redis.Nil {
			return errs.WrapMsg(err, "collection read pipeline", "keys", slotKeys)
		}

		mu.Lock()
		defer mu.Unlock()
		for key, cmd := range strCmds {
			v, err := cmd.Result()
			if err == nil && v == cfg.EmptyValueMark {
				out[key] = Result{Empty: true}
			}
		}
		for key, cmd := range collCmds {
			members, err := cmd.members()
			if err != nil {
				log.ZWarn(ctx, "drop unreadable collection entry", err, "key", key)
				continue
			}
			if len(members) == 1 && members[0] == cfg.EmptyValueMark {
				out[key] = Result{Empty: true}
				continue
			}
			values, err := DecodeMembers(cfg, members)
			if err != nil {
				log.ZWarn(ctx, "drop undecodable collection entry", err, "key", key)
				continue
			}
			out[key] = Result{Value: values}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
