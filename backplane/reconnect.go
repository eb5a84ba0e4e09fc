// Copyright (c) 2026 The Altruist Authors
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

package backplane

import (
	"context"
	"sync"
	"time"

	"altruist/internal/logging"
	"altruist/internal/xerrors"
)

// reconnectPolicy watches one Redis connection with a periodic PING and
// tells callers when it goes down and comes back, so they can rebuild
// anything that doesn't survive a disconnect (the pub/sub subscription,
// in this package's case). The shape is adapted from the connection
// pool's own health monitor: a ticker-driven probe, one retry one floor
// interval later before declaring the node down, and a "were we down"
// flag so the reconnect log and callback only fire once per outage.
//
// floor is the minimum interval between probes (cache.reconnect.floorMs,
// default 5s); it is effectively the retry interval too, since a failed
// probe is retried once after waiting one floor interval and otherwise
// waits for the next tick — there is no backoff ceiling to hit, so
// retry is, in practice, indefinite.
type reconnectPolicy struct {
	client redisClient
	floor  time.Duration

	onFailed   func()
	onRestored func()

	mu      sync.Mutex
	down    bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func newReconnectPolicy(client redisClient, floor time.Duration, onFailed, onRestored func()) *reconnectPolicy {
	if floor <= 0 {
		floor = 5 * time.Second
	}
	return &reconnectPolicy{
		client:     client,
		floor:      floor,
		onFailed:   onFailed,
		onRestored: onRestored,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// start launches the monitor loop. Safe to call at most once.
func (p *reconnectPolicy) start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()
	go p.monitor()
}

func (p *reconnectPolicy) stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *reconnectPolicy) monitor() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.floor)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.probeOnce()
		}
	}
}

func (p *reconnectPolicy) probeOnce() {
	if err := p.detect(); err == nil {
		p.markUp()
		return
	} else if xerrors.IsTransient(err) {
		// Worth one retry, one floor interval later, before declaring the
		// node down: most transient Redis blips clear by then.
		logging.Warnf("backplane: ping probe failed, retrying once: %s", err)
	}
	select {
	case <-time.After(p.floor):
	case <-p.stopCh:
		return
	}
	if err := p.detect(); err == nil {
		p.markUp()
		return
	}
	p.markDown()
}

// detect PINGs the node, classifying any failure as a TransientIOError
// so callers route it through the same IsTransient policy the rest of
// the framework uses to decide what's worth retrying.
func (p *reconnectPolicy) detect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return xerrors.NewTransientIOError("redis-ping", err)
	}
	return nil
}

func (p *reconnectPolicy) markDown() {
	p.mu.Lock()
	wasDown := p.down
	p.down = true
	p.mu.Unlock()
	if !wasDown {
		logging.Errorf("backplane: redis connection lost")
		if p.onFailed != nil {
			p.onFailed()
		}
	}
}

func (p *reconnectPolicy) markUp() {
	p.mu.Lock()
	wasDown := p.down
	p.down = false
	p.mu.Unlock()
	if wasDown {
		logging.Infof("backplane: redis connection restored")
		if p.onRestored != nil {
			p.onRestored()
		}
	}
}
