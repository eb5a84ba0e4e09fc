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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"altruist/internal/xerrors"
)

// DocumentStore keys small cluster-shared JSON documents under
// "<prefix>[_<group>]:<id>" (spec.md §4.4). It is not restartable:
// Cursor pages results with SCAN, which gives no consistency guarantee
// against concurrent writes, matching the spec's own caveat.
type DocumentStore struct {
	client redisClient
	prefix string
}

// NewDocumentStore returns a store namespaced under prefix.
func NewDocumentStore(b *Backplane, prefix string) *DocumentStore {
	return &DocumentStore{client: b.client, prefix: prefix}
}

func (d *DocumentStore) key(group, id string) string {
	if group == "" {
		return fmt.Sprintf("%s:%s", d.prefix, id)
	}
	return fmt.Sprintf("%s_%s:%s", d.prefix, group, id)
}

// Save JSON-serializes value under (group, id), overwriting any
// existing document.
func (d *DocumentStore) Save(ctx context.Context, group, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("backplane: marshal document %s/%s: %w", group, id, err)
	}
	if err := d.client.Set(ctx, d.key(group, id), raw, 0).Err(); err != nil {
		return xerrors.NewTransientIOError("backplane.DocumentStore.Save", err)
	}
	return nil
}

// Get loads (group, id) into out, reporting false if it doesn't exist.
func (d *DocumentStore) Get(ctx context.Context, group, id string, out any) (bool, error) {
	raw, err := d.client.Get(ctx, d.key(group, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.NewTransientIOError("backplane.DocumentStore.Get", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("backplane: unmarshal document %s/%s: %w", group, id, err)
	}
	return true, nil
}

// Remove deletes (group, id). It is tolerant of the document already
// being absent.
func (d *DocumentStore) Remove(ctx context.Context, group, id string) error {
	if err := d.client.Del(ctx, d.key(group, id)).Err(); err != nil {
		return xerrors.NewTransientIOError("backplane.DocumentStore.Remove", err)
	}
	return nil
}

// Contains reports whether (group, id) exists without fetching its body.
func (d *DocumentStore) Contains(ctx context.Context, group, id string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(group, id)).Result()
	if err != nil {
		return false, xerrors.NewTransientIOError("backplane.DocumentStore.Contains", err)
	}
	return n > 0, nil
}

// Clear deletes every document in group. It reads the full key set with
// KEYS, which blocks the Redis node proportional to keyspace size; fine
// for the small, operator-scoped groups this framework expects (per-room
// or per-process state), not a general-purpose bulk delete.
func (d *DocumentStore) Clear(ctx context.Context, group string) error {
	keys, err := d.client.Keys(ctx, d.key(group, "*")).Result()
	if err != nil {
		return xerrors.NewTransientIOError("backplane.DocumentStore.Clear.keys", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return xerrors.NewTransientIOError("backplane.DocumentStore.Clear.del", err)
	}
	return nil
}

// Cursor pages through every document in group batchSize ids at a time
// using SCAN, then MGETs the bodies for each page. It makes no
// consistency promise across pages: documents written or removed mid-
// scan may be seen zero or more times (spec.md §4.4).
type Cursor struct {
	client  redisClient
	match   string
	batch   int64
	cursor  uint64
	started bool
	done    bool
}

// NewCursor returns a Cursor over every document in group.
func (d *DocumentStore) NewCursor(group string, batchSize int) *Cursor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Cursor{client: d.client, match: d.key(group, "*"), batch: int64(batchSize)}
}

// Next returns the next page of raw JSON documents, or false once
// exhausted.
func (c *Cursor) Next(ctx context.Context) ([]json.RawMessage, bool, error) {
	if c.done {
		return nil, false, nil
	}
	keys, next, err := c.client.Scan(ctx, c.cursor, c.match, c.batch).Result()
	if err != nil {
		return nil, false, xerrors.NewTransientIOError("backplane.Cursor.Next.scan", err)
	}
	c.cursor = next
	c.started = true
	if next == 0 {
		c.done = true
	}
	if len(keys) == 0 {
		if c.done {
			return nil, false, nil
		}
		return []json.RawMessage{}, true, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false, xerrors.NewTransientIOError("backplane.Cursor.Next.mget", err)
	}
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, json.RawMessage(s))
	}
	return out, !c.done, nil
}
