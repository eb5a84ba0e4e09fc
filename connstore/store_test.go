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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddConnectionIsPutIfAbsent(t *testing.T) {
	store := New(nil)
	c1 := NewConnection("client-1", TransportWebsocket, "proc-a")
	c2 := NewConnection("client-1", TransportTCP, "proc-b")

	require.True(t, store.AddConnection(context.Background(), c1))
	assert.False(t, store.AddConnection(context.Background(), c2))

	got, ok := store.GetLocalConnection("client-1")
	require.True(t, ok)
	assert.Same(t, c1, got)
}

func TestRemoveConnectionLeavesNoRoom(t *testing.T) {
	store := New(nil)
	conn := NewConnection("client-1", TransportWebsocket, "proc-a")
	store.AddConnection(context.Background(), conn)

	room := NewRoom("room-1", 10)
	store.CreateRoom(room)
	require.True(t, store.JoinRoom(room, conn.ID))
	assert.True(t, room.Has(conn.ID))

	store.RemoveConnection(context.Background(), conn.ID)

	assert.False(t, room.Has(conn.ID))
	_, ok := store.GetLocalConnection(conn.ID)
	assert.False(t, ok)
}

func TestRoomRejectsJoinAtCapacity(t *testing.T) {
	room := NewRoom("room-1", 1)
	store := New(nil)
	store.CreateRoom(room)

	assert.True(t, store.JoinRoom(room, "client-1"))
	assert.False(t, store.JoinRoom(room, "client-2"))
	assert.Equal(t, 1, room.Len())
}

func TestRoomMembershipOpsAreIdempotent(t *testing.T) {
	room := NewRoom("room-1", 10)
	assert.True(t, room.Add("client-1"))
	assert.True(t, room.Add("client-1"))
	assert.Equal(t, 1, room.Len())

	room.Remove("client-2")
	room.Remove("client-1")
	room.Remove("client-1")
	assert.Equal(t, 0, room.Len())
}

func TestCreateRoomIsPutIfAbsent(t *testing.T) {
	store := New(nil)
	r1 := NewRoom("room-1", 5)
	r2 := NewRoom("room-1", 50)

	require.True(t, store.CreateRoom(r1))
	assert.False(t, store.CreateRoom(r2))

	got, ok := store.GetLocalRoom("room-1")
	require.True(t, ok)
	assert.Same(t, r1, got)
}

func TestFindAvailableRoomSkipsFullRooms(t *testing.T) {
	store := New(nil)
	full := NewRoom("full", 1)
	full.Add("client-1")
	store.CreateRoom(full)

	open := NewRoom("open", 5)
	store.CreateRoom(open)

	found, ok := store.FindAvailableRoom()
	require.True(t, ok)
	assert.Equal(t, "open", found.ID)
}

func TestConcurrentJoinRespectsCapacity(t *testing.T) {
	room := NewRoom("room-1", 50)
	store := New(nil)
	store.CreateRoom(room)

	var wg sync.WaitGroup
	accepted := make([]bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accepted[i] = store.JoinRoom(room, string(rune('a'+i%26))+string(rune(i)))
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range accepted {
		if ok {
			count++
		}
	}
	assert.LessOrEqual(t, room.Len(), 50)
	assert.Equal(t, room.Len(), count)
}

type fakeRemote struct {
	mu    sync.Mutex
	saved map[string]Snapshot
}

func newFakeRemote() *fakeRemote { return &fakeRemote{saved: make(map[string]Snapshot)} }

func (f *fakeRemote) SaveConnection(ctx context.Context, snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[snap.ID] = snap
	return nil
}

func (f *fakeRemote) LookupConnection(ctx context.Context, id string) (Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.saved[id]
	return snap, ok, nil
}

func (f *fakeRemote) RemoveConnection(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, id)
	return nil
}

func TestGetConnectionFallsBackToRemoteShadow(t *testing.T) {
	remote := newFakeRemote()
	remote.saved["client-9"] = Snapshot{
		ID: "client-9", Transport: TransportUDP, OwnerProcessID: "proc-z",
		Connected: true, State: StateJoined,
	}
	store := New(remote)

	conn, ok, err := store.GetConnection(context.Background(), "client-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "proc-z", conn.OwnerProcessID)
	assert.Equal(t, StateJoined, conn.State())
}

func TestGetConnectionUnknownLocalAndRemote(t *testing.T) {
	store := New(newFakeRemote())
	_, ok, err := store.GetConnection(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddConnectionPublishesSnapshotToRemote(t *testing.T) {
	remote := newFakeRemote()
	store := New(remote)
	conn := NewConnection("client-1", TransportWebsocket, "proc-a")

	require.True(t, store.AddConnection(context.Background(), conn))

	remote.mu.Lock()
	snap, ok := remote.saved["client-1"]
	remote.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, StateHandshaking, snap.State)
}

func TestSetStateRepublishesSnapshotToRemote(t *testing.T) {
	remote := newFakeRemote()
	store := New(remote)
	conn := NewConnection("client-1", TransportWebsocket, "proc-a")
	require.True(t, store.AddConnection(context.Background(), conn))

	store.SetState(context.Background(), conn, StateAuthenticated)

	remote.mu.Lock()
	snap, ok := remote.saved["client-1"]
	remote.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, StateAuthenticated, conn.State())
}
