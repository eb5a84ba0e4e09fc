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

	"altruist/connstore"
	"altruist/internal/logging"
	"altruist/packet"
)

// RoomSender fans a packet out to every member of a room via
// ClientSender. One member's send failure is logged and does not stop
// delivery to the rest.
type RoomSender struct {
	store  *connstore.Store
	client *ClientSender
}

func NewRoomSender(store *connstore.Store, client *ClientSender) *RoomSender {
	return &RoomSender{store: store, client: client}
}

// SendToRoom delivers p to every connection currently in roomID.
func (s *RoomSender) SendToRoom(ctx context.Context, roomID string, p packet.Packet) error {
	room, ok := s.store.GetLocalRoom(roomID)
	if !ok {
		return nil
	}
	for _, memberID := range room.Members() {
		if err := s.client.Send(ctx, memberID, p); err != nil {
			logging.Warnf("router: room %s member %s send failed: %v", roomID, memberID, err)
		}
	}
	return nil
}
