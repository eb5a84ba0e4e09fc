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

// Package matchmaking is the framework's one built-in portal: it
// handles JoinGamePacket and LeaveGamePacket, the two packet types
// spec.md's data model calls out by name, putting a connection into a
// named room (or the first room with room, or a freshly created one)
// and replying with the room's current roster.
package matchmaking

import (
	"context"
	"fmt"

	"altruist/connstore"
	"altruist/packet"
	"altruist/portal"
	"altruist/router"
)

// Portal assigns connections to rooms and reports room membership. It
// implements portal.Registrar, registering its own gates explicitly
// rather than being discovered by reflection (Design Notes item 1) —
// the same shape as the teacher's listenServer wiring itself against
// its event engine by embedding and overriding.
type Portal struct {
	store  *connstore.Store
	router *router.Router
}

// New returns a Portal ready to Register against a Dispatcher.
func New(store *connstore.Store, r *router.Router) *Portal {
	return &Portal{store: store, router: r}
}

var _ portal.Registrar = (*Portal)(nil)

func (p *Portal) Register(d *portal.Dispatcher) error {
	if err := d.Handle(packet.TypeJoinGame, p, p.handleJoinGame); err != nil {
		return err
	}
	return d.Handle(packet.TypeLeaveGame, p, p.handleLeaveGame)
}

func (p *Portal) handleJoinGame(ctx context.Context, clientID string, pkt packet.Packet) error {
	join, ok := pkt.(*packet.JoinGamePacket)
	if !ok {
		return fmt.Errorf("matchmaking: expected *packet.JoinGamePacket, got %T", pkt)
	}

	room, ok := p.resolveRoom(join.RoomID)
	if !ok {
		return p.router.Client.Send(ctx, clientID, &packet.FailedPacket{Reason: "room unavailable"})
	}

	if !p.store.JoinRoom(room, clientID) {
		return p.router.Client.Send(ctx, clientID, &packet.FailedPacket{Reason: "room is full"})
	}

	return p.router.Client.Send(ctx, clientID, &packet.RoomPacket{
		ID:            room.ID,
		MaxCapacity:   room.MaxCapacity,
		ConnectionIDs: room.Members(),
	})
}

func (p *Portal) handleLeaveGame(ctx context.Context, clientID string, pkt packet.Packet) error {
	leave, ok := pkt.(*packet.LeaveGamePacket)
	if !ok {
		return fmt.Errorf("matchmaking: expected *packet.LeaveGamePacket, got %T", pkt)
	}
	for _, room := range p.store.AllLocalRooms() {
		if room.Has(leave.ClientID) {
			p.store.LeaveRoom(room, leave.ClientID)
		}
	}
	return p.router.Client.Send(ctx, clientID, &packet.SuccessPacket{Message: "left"})
}

// resolveRoom finds roomID if given and present, else the first local
// room with spare capacity, else a freshly created default-capacity
// room. It never returns false for lack of one: a room is always
// creatable; false is reserved for a future capacity-exhaustion policy.
func (p *Portal) resolveRoom(roomID string) (*connstore.Room, bool) {
	if roomID != "" {
		if room, ok := p.store.GetLocalRoom(roomID); ok {
			return room, true
		}
		room := connstore.NewRoom(roomID, connstore.DefaultMaxCapacity)
		p.store.CreateRoom(room)
		return room, true
	}
	if room, ok := p.store.FindAvailableRoom(); ok {
		return room, true
	}
	room := connstore.NewRoom(fmt.Sprintf("room-%d", len(p.store.AllLocalRooms())+1), connstore.DefaultMaxCapacity)
	p.store.CreateRoom(room)
	return room, true
}
