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

// BroadcastSender delivers a packet to every locally-known connection,
// optionally skipping one id (typically the sender, to avoid echo).
type BroadcastSender struct {
	store  *connstore.Store
	client *ClientSender
}

func NewBroadcastSender(store *connstore.Store, client *ClientSender) *BroadcastSender {
	return &BroadcastSender{store: store, client: client}
}

// SendToAll delivers p to every local connection except excludeID (pass
// "" to exclude none).
func (s *BroadcastSender) SendToAll(ctx context.Context, p packet.Packet, excludeID string) error {
	for _, conn := range s.store.AllLocalConnections() {
		if conn.ID == excludeID {
			continue
		}
		if err := s.client.Send(ctx, conn.ID, p); err != nil {
			logging.Warnf("router: broadcast to %s failed: %v", conn.ID, err)
		}
	}
	return nil
}
