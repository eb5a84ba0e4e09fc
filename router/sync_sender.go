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

package router

import (
	"context"

	"altruist/packet"
)

// SyncComputer is satisfied by package deltasync's Engine. Declared here
// rather than imported so router has no dependency on deltasync's own
// reflect-driven property cache; deltasync instead depends on nothing
// from router, keeping the SPEC_FULL.md component order (SyncEngine
// is built after Router/Senders) a one-way street.
type SyncComputer interface {
	// ComputeDelta returns the changed-property bitmask and the
	// changed-properties-by-name payload for entity as seen by
	// clientID, relative to that pair's last observed values. forceAll
	// forces every synced property into the delta (first send / room
	// join snapshot).
	ComputeDelta(clientID, entityType, entityID string, entity any, forceAll bool) (mask uint64, changed map[string]any, err error)
}

// ClientSynchronizator computes entity sync deltas and sends them to
// one client, or to each member of a room.
type ClientSynchronizator struct {
	client *ClientSender
	sync   SyncComputer
}

func NewClientSynchronizator(client *ClientSender, sync SyncComputer) *ClientSynchronizator {
	return &ClientSynchronizator{client: client, sync: sync}
}

// Sync computes entity's delta for clientID and sends a SyncPacket if
// anything changed; a zero mask (nothing changed since last observed)
// is a no-op, not an empty packet on the wire.
func (s *ClientSynchronizator) Sync(ctx context.Context, clientID, entityType, entityID string, entity any, forceAll bool) error {
	mask, changed, err := s.sync.ComputeDelta(clientID, entityType, entityID, entity, forceAll)
	if err != nil {
		return err
	}
	if mask == 0 {
		return nil
	}
	return s.client.Send(ctx, clientID, &packet.SyncPacket{
		EntityType: entityType,
		EntityID:   entityID,
		Data:       changed,
	})
}

// SyncToRoom computes and sends entity's delta to every member of
// roomID except excludeID (by default the entity's own owning
// connection, to avoid echo).
func (s *ClientSynchronizator) SyncToRoom(ctx context.Context, room *RoomSender, roomID, entityType, entityID string, entity any, excludeID string, forceAll bool) error {
	r, ok := s.client.store.GetLocalRoom(roomID)
	if !ok {
		return nil
	}
	for _, memberID := range r.Members() {
		if memberID == excludeID {
			continue
		}
		if err := s.Sync(ctx, memberID, entityType, entityID, entity, forceAll); err != nil {
			return err
		}
	}
	return nil
}
