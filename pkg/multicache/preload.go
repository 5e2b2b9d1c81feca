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

	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/robfig/cron/v3"
)

// PreloadSupplier produces a dataset to push into a cache, keyed by
// business key or full key.
type PreloadSupplier func(ctx context.Context) (map[string]any, error)

// Preloader re-runs registered preload suppliers on cron schedules, keeping
// hot datasets warm without waiting for the first read to miss.
type Preloader struct {
	engine *Engine
	cron   *cron.Cron
}

func NewPreloader(engine *Engine) *Preloader {
	return &Preloader{
		engine: engine,
		cron:   cron.New(),
	}
}

// Register schedules supply for cacheName under a standard cron spec and
// runs it once immediately so the cache starts warm.
func (p *Preloader) Register(ctx context.Context, spec, cacheName string, supply PreloadSupplier) error {
	run := func() {
		data, err := supply(ctx)
		if err != nil {
			log.ZError(ctx, "preload supplier failed", err, "cache", cacheName)
			return
		}
		if n := p.engine.Preload(ctx, cacheName, data); n < 0 {
			log.ZError(ctx, "scheduled preload failed", nil, "cache", cacheName)
		}
	}
	if _, err := p.cron.AddFunc(spec, run); err != nil {
		return errs.WrapMsg(err, "register preload", "cache", cacheName, "spec", spec)
	}
	run()
	return nil
}

// Start begins executing schedules in a background goroutine.
func (p *Preloader) Start() {
	p.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (p *Preloader) Stop() {
	<-p.cron.Stop().Done()
}
