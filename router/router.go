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

// Package router aggregates the four ways the framework addresses
// packets — to one client, to a room, to everyone, or as a computed
// sync delta — behind small constructor-injected senders, the way the
// teacher wires its own collaborators explicitly rather than through a
// service locator.
package router

import (
	"context"

	"altruist/connstore"
	"altruist/packet"
)

// LocalConns resolves a connection id to the live transport it's
// actually attached to on this process. main.go's accept path is
// responsible for registering and deregistering entries as connections
// come and go.
type LocalConns interface {
	Lookup(connectionID string) (Conn, bool)
}

// Conn is the subset of transport.Conn the router needs; kept narrow so
// router doesn't have to import the transport package directly.
type Conn interface {
	Send(frame []byte) error
}

// RemoteSender hands a packet to the Redis backplane for delivery to a
// connection owned by another process. A Router with a nil RemoteSender
// can only reach connections local to this process.
type RemoteSender interface {
	SendToProcess(ctx context.Context, processID, clientID string, p packet.Packet) error
}

// Router is the framework's single routing facade, handed to portals
// and tick-engine tasks.
type Router struct {
	Client      *ClientSender
	Room        *RoomSender
	Broadcast   *BroadcastSender
	Synchronize *ClientSynchronizator
}

// New builds the default direct Router: every Send call
// resolves and writes inline, on the caller's own goroutine.
func New(store *connstore.Store, codec packet.Codec, conns LocalConns, remote RemoteSender, sync SyncComputer) *Router {
	client := NewClientSender(store, codec, conns, remote)
	return &Router{
		Client:      client,
		Room:        NewRoomSender(store, client),
		Broadcast:   NewBroadcastSender(store, client),
		Synchronize: NewClientSynchronizator(client, sync),
	}
}
