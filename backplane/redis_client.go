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

// Package backplane is the Redis-backed cross-process layer: an egress
// queue for packets addressed to connections owned by another process,
// a document store for small cluster-shared state, and a reconnect
// policy that keeps both alive across a flaky Redis node.
package backplane

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the narrow slice of *redis.Client this package actually
// calls. Declaring it lets tests run against a hand-written fake instead
// of a live Redis server, the same pattern connstore.RemoteStore and
// router's collaborator interfaces use for their own external
// dependencies. *redis.Client satisfies this interface structurally.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ redisClient = (*redis.Client)(nil)

// ClientConfig mirrors config.Config's cache section (kept decoupled
// from the config package so backplane doesn't import it just for five
// scalars).
type ClientConfig struct {
	ContactPoints    []string
	Password         string
	ConnectTimeoutMs int
	SyncTimeoutMs    int
	AsyncTimeoutMs   int
	ReconnectFloorMs int
}

// newRedisClient builds a *redis.Client from cfg. Only ContactPoints[0]
// is used: this framework targets a single Redis node or a
// client-side-unaware proxy in front of one, not a cluster-aware client
// (spec.md's backplane has no slot-routing concept).
func newRedisClient(cfg ClientConfig) *redis.Client {
	addr := "localhost:6379"
	if len(cfg.ContactPoints) > 0 {
		addr = cfg.ContactPoints[0]
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DialTimeout:  durationOrDefault(cfg.ConnectTimeoutMs, 1000),
		ReadTimeout:  durationOrDefault(cfg.SyncTimeoutMs, 1000),
		WriteTimeout: durationOrDefault(cfg.SyncTimeoutMs, 1000),
	})
}

func durationOrDefault(ms int, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
