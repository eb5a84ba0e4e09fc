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

// Package connstore holds the connection/room registry: the in-memory,
// fine-grained-locked local store plus the optional Redis-shadowed view
// of connections owned by other processes.
package connstore

import "sync/atomic"

// TransportKind names the wire transport a Connection was accepted on.
type TransportKind string

const (
	TransportWebsocket TransportKind = "websocket"
	TransportUDP       TransportKind = "udp"
	TransportTCP       TransportKind = "tcp"
)

// State is a Connection's position in its handshake/session lifecycle.
type State string

const (
	StateHandshaking   State = "Handshaking"
	StateAuthenticated State = "Authenticated"
	StateJoined        State = "Joined"
	StateClosing       State = "Closing"
)

// Connection is one logical client session. OwnerProcessID identifies
// the process that actually owns the socket; a Connection observed
// through the Redis shadow store carries a foreign OwnerProcessID and
// has no local Sender.
type Connection struct {
	ID              string
	Transport       TransportKind
	OwnerProcessID  string

	connected atomic.Bool
	state     atomic.Value // State
}

// NewConnection constructs a Connection owned by this process, starting
// in StateHandshaking and marked connected.
func NewConnection(id string, transport TransportKind, ownerProcessID string) *Connection {
	c := &Connection{ID: id, Transport: transport, OwnerProcessID: ownerProcessID}
	c.connected.Store(true)
	c.state.Store(StateHandshaking)
	return c
}

func (c *Connection) IsConnected() bool { return c.connected.Load() }

func (c *Connection) SetConnected(v bool) { c.connected.Store(v) }

func (c *Connection) State() State {
	if v, ok := c.state.Load().(State); ok {
		return v
	}
	return StateHandshaking
}

func (c *Connection) SetState(s State) { c.state.Store(s) }

// Snapshot is an immutable, race-free view of a Connection's fields at
// one instant, suitable for handing to a sender or a Redis shadow write.
type Snapshot struct {
	ID             string
	Transport      TransportKind
	OwnerProcessID string
	Connected      bool
	State          State
}

func (c *Connection) Snapshot() Snapshot {
	return Snapshot{
		ID:             c.ID,
		Transport:      c.Transport,
		OwnerProcessID: c.OwnerProcessID,
		Connected:      c.IsConnected(),
		State:          c.State(),
	}
}
