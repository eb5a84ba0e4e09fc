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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altruist/connstore"
	jsoncodec "altruist/packet/json"
	"altruist/packet"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type fakeLocalConns struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeLocalConns() *fakeLocalConns { return &fakeLocalConns{conns: make(map[string]*fakeConn)} }

func (f *fakeLocalConns) add(id string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{}
	f.conns[id] = c
	return c
}

func (f *fakeLocalConns) Lookup(id string) (Conn, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[id]
	return c, ok
}

type fakeRemoteSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeRemoteSender) SendToProcess(ctx context.Context, processID, clientID string, p packet.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, processID+":"+clientID)
	return nil
}

func TestClientSenderSendsLocal(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	fc := conns.add("client-1")

	sender := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	err := sender.Send(context.Background(), "client-1", &packet.SuccessPacket{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, fc.count())
}

func TestClientSenderRoutesRemote(t *testing.T) {
	remote := &fakeRemoteSender{}
	remoteStore := &fakeRemoteStoreForRouter{
		snap: connstore.Snapshot{ID: "client-2", OwnerProcessID: "proc-b", Connected: true},
	}
	store := connstore.New(remoteStore)
	conns := newFakeLocalConns()

	sender := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, remote)
	err := sender.Send(context.Background(), "client-2", &packet.SuccessPacket{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"proc-b:client-2"}, remote.sent)
}

func TestClientSenderUnknownIsNoop(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	sender := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	err := sender.Send(context.Background(), "ghost", &packet.SuccessPacket{Message: "hi"})
	assert.NoError(t, err)
}

func TestRoomSenderFansOutToMembers(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	a := conns.add("a")
	b := conns.add("b")

	room := connstore.NewRoom("room-1", 10)
	store.CreateRoom(room)
	store.JoinRoom(room, "a")
	store.JoinRoom(room, "b")

	client := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	roomSender := NewRoomSender(store, client)

	require.NoError(t, roomSender.SendToRoom(context.Background(), "room-1", &packet.SuccessPacket{Message: "hi"}))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestBroadcastSenderExcludesSelf(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	a := conns.add("a")
	b := conns.add("b")
	store.AddConnection(context.Background(), connstore.NewConnection("a", connstore.TransportWebsocket, "proc"))
	store.AddConnection(context.Background(), connstore.NewConnection("b", connstore.TransportWebsocket, "proc"))

	client := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	bcast := NewBroadcastSender(store, client)

	require.NoError(t, bcast.SendToAll(context.Background(), &packet.SuccessPacket{Message: "hi"}, "a"))
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
}

type fakeSyncComputer struct {
	mask    uint64
	changed map[string]any
}

func (f *fakeSyncComputer) ComputeDelta(clientID, entityType, entityID string, entity any, forceAll bool) (uint64, map[string]any, error) {
	return f.mask, f.changed, nil
}

func TestClientSynchronizatorSkipsZeroMask(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	fc := conns.add("client-1")

	client := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	sync := NewClientSynchronizator(client, &fakeSyncComputer{mask: 0})

	require.NoError(t, sync.Sync(context.Background(), "client-1", "Player", "p-1", struct{}{}, false))
	assert.Equal(t, 0, fc.count())
}

func TestClientSynchronizatorSendsOnChange(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	fc := conns.add("client-1")

	client := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	sync := NewClientSynchronizator(client, &fakeSyncComputer{mask: 1, changed: map[string]any{"hp": 42}})

	require.NoError(t, sync.Sync(context.Background(), "client-1", "Player", "p-1", struct{}{}, false))
	assert.Equal(t, 1, fc.count())
}

func TestEngineClientSenderCoalescesByKey(t *testing.T) {
	store := connstore.New(nil)
	conns := newFakeLocalConns()
	conns.add("client-1")

	inner := NewClientSender(store, jsoncodec.New(packet.NewRegistry()), conns, nil)
	sub := &fakeSubmitter{}
	engineSender := NewEngineClientSender(inner, sub)

	require.NoError(t, engineSender.Send(context.Background(), "client-1", &packet.SuccessPacket{Message: "a"}))
	require.NoError(t, engineSender.Send(context.Background(), "client-1", &packet.SuccessPacket{Message: "b"}))
	require.NoError(t, engineSender.Send(context.Background(), "client-1", &packet.SuccessPacket{Message: "c"}))

	assert.Len(t, sub.tasks, 1, "three rapid sends to the same key must coalesce to one pending task")
	sub.tasks["client-1:SuccessPacket"]()

	fc, ok := conns.Lookup("client-1")
	require.True(t, ok)
	assert.Equal(t, 1, fc.(*fakeConn).count(), "the coalesced task fires exactly once when the tick runs it")
}

type fakeSubmitter struct {
	tasks map[string]func()
}

func (f *fakeSubmitter) SubmitDynamic(key string, fn func()) {
	if f.tasks == nil {
		f.tasks = make(map[string]func())
	}
	f.tasks[key] = fn
}

type fakeRemoteStoreForRouter struct {
	snap connstore.Snapshot
}

func (f *fakeRemoteStoreForRouter) SaveConnection(ctx context.Context, snap connstore.Snapshot) error {
	return nil
}

func (f *fakeRemoteStoreForRouter) LookupConnection(ctx context.Context, id string) (connstore.Snapshot, bool, error) {
	if id == f.snap.ID {
		return f.snap, true, nil
	}
	return connstore.Snapshot{}, false, nil
}

func (f *fakeRemoteStoreForRouter) RemoveConnection(ctx context.Context, id string) error {
	return nil
}
