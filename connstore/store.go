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

package connstore

import (
	"context"
	"sync"

	"github.com/cornelk/hashmap"

	"altruist/internal/logging"
)

// RemoteStore is the Redis-shadowed view of connections and rooms owned
// by other processes in the cluster. A Store with a nil RemoteStore
// only ever sees connections local to this process, which is a valid
// single-process deployment.
type RemoteStore interface {
	SaveConnection(ctx context.Context, snap Snapshot) error
	LookupConnection(ctx context.Context, id string) (Snapshot, bool, error)
	RemoveConnection(ctx context.Context, id string) error
}

// Store is the framework's connection and room registry. Connections
// and rooms each live in their own cornelk/hashmap.HashMap for
// lock-free reads; membership mutation on a Room is additionally
// guarded by that Room's own mutex (see room.go).
type Store struct {
	conns hashmap.HashMap // string -> *Connection
	rooms hashmap.HashMap // string -> *Room

	// membership tracks which rooms a local connection id has joined,
	// so RemoveConnection can evict it from every room without a full
	// room scan. Keyed by connection id -> set of room ids.
	membershipMu sync.Mutex
	membership   map[string]map[string]struct{}

	remote RemoteStore
}

// New returns an empty Store. remote may be nil for a single-process
// deployment with no Redis backplane.
func New(remote RemoteStore) *Store {
	return &Store{
		membership: make(map[string]map[string]struct{}),
		remote:     remote,
	}
}

// AddConnection inserts conn if no connection with the same id already
// exists locally. It reports false without modifying the store if the
// id is a duplicate. On success, if a RemoteStore is configured, conn's
// snapshot is published so other processes can route to it through the
// backplane — the write side of the shadow RemoveConnection already
// tears down.
func (s *Store) AddConnection(ctx context.Context, conn *Connection) bool {
	actual, loaded := s.conns.GetOrInsert(conn.ID, conn)
	if loaded {
		return actual == conn
	}
	s.publishRemote(ctx, conn)
	return true
}

// SetState transitions conn to state and, if a RemoteStore is
// configured, republishes its snapshot so the shadow view other
// processes see stays current with the handshake/session lifecycle.
func (s *Store) SetState(ctx context.Context, conn *Connection, state State) {
	conn.SetState(state)
	s.publishRemote(ctx, conn)
}

func (s *Store) publishRemote(ctx context.Context, conn *Connection) {
	if s.remote == nil {
		return
	}
	if err := s.remote.SaveConnection(ctx, conn.Snapshot()); err != nil {
		logging.Warnf("connstore: remote save connection %s: %v", conn.ID, err)
	}
}

// GetConnection looks up id, first in the local store, then (if remote
// is configured) in the Redis shadow store. A connection resolved only
// through the shadow store carries a foreign OwnerProcessID and no
// local Sender; callers route to it through the backplane, not a local
// transport.
func (s *Store) GetConnection(ctx context.Context, id string) (*Connection, bool, error) {
	if v, ok := s.conns.Get(id); ok {
		return v.(*Connection), true, nil
	}
	if s.remote == nil {
		return nil, false, nil
	}
	snap, ok, err := s.remote.LookupConnection(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	shadow := &Connection{ID: snap.ID, Transport: snap.Transport, OwnerProcessID: snap.OwnerProcessID}
	shadow.SetConnected(snap.Connected)
	shadow.SetState(snap.State)
	return shadow, true, nil
}

// GetLocalConnection looks up id in the local store only.
func (s *Store) GetLocalConnection(id string) (*Connection, bool) {
	v, ok := s.conns.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Connection), true
}

// AllLocalConnections returns every connection owned by this process.
func (s *Store) AllLocalConnections() []*Connection {
	out := make([]*Connection, 0, s.conns.Len())
	for kv := range s.conns.Iter() {
		out = append(out, kv.Value.(*Connection))
	}
	return out
}

// RemoveConnection deletes id from the local store and evicts it from
// every room it had joined, satisfying "after removeConnection id is in
// no room".
func (s *Store) RemoveConnection(ctx context.Context, id string) {
	s.conns.Del(id)

	s.membershipMu.Lock()
	roomIDs := s.membership[id]
	delete(s.membership, id)
	s.membershipMu.Unlock()

	for roomID := range roomIDs {
		if room, ok := s.GetLocalRoom(roomID); ok {
			room.Remove(id)
		}
	}

	if s.remote != nil {
		if err := s.remote.RemoveConnection(ctx, id); err != nil {
			logging.Warnf("connstore: remote remove connection %s: %v", id, err)
		}
	}
}

// CreateRoom registers room if no room with the same id exists yet. It
// reports false without modifying the store if the id is a duplicate.
func (s *Store) CreateRoom(room *Room) bool {
	actual, loaded := s.rooms.GetOrInsert(room.ID, room)
	if loaded {
		return actual == room
	}
	return true
}

// GetLocalRoom looks up a room by id in the local store.
func (s *Store) GetLocalRoom(id string) (*Room, bool) {
	v, ok := s.rooms.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

// AllLocalRooms returns every room known locally.
func (s *Store) AllLocalRooms() []*Room {
	out := make([]*Room, 0, s.rooms.Len())
	for kv := range s.rooms.Iter() {
		out = append(out, kv.Value.(*Room))
	}
	return out
}

// DeleteRoom removes a room entirely, regardless of membership.
func (s *Store) DeleteRoom(id string) {
	s.rooms.Del(id)
}

// FindAvailableRoom returns the first local room with spare capacity,
// or false if every room is full. Callers that want deterministic
// matchmaking should iterate AllLocalRooms themselves instead.
func (s *Store) FindAvailableRoom() (*Room, bool) {
	for kv := range s.rooms.Iter() {
		room := kv.Value.(*Room)
		if !room.IsFull() {
			return room, true
		}
	}
	return nil, false
}

// JoinRoom adds connectionID to room and records the membership so
// RemoveConnection can clean it up later. It reports false if the room
// was at capacity.
func (s *Store) JoinRoom(room *Room, connectionID string) bool {
	if !room.Add(connectionID) {
		return false
	}
	s.membershipMu.Lock()
	set, ok := s.membership[connectionID]
	if !ok {
		set = make(map[string]struct{})
		s.membership[connectionID] = set
	}
	set[room.ID] = struct{}{}
	s.membershipMu.Unlock()
	return true
}

// LeaveRoom removes connectionID from room, tolerant of it already
// being absent.
func (s *Store) LeaveRoom(room *Room, connectionID string) {
	room.Remove(connectionID)
	s.membershipMu.Lock()
	if set, ok := s.membership[connectionID]; ok {
		delete(set, room.ID)
		if len(set) == 0 {
			delete(s.membership, connectionID)
		}
	}
	s.membershipMu.Unlock()
}
