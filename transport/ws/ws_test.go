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

package ws

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"altruist/transport"
)

func TestListenerAcceptAndEcho(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	l := New(addr)
	accepted := make(chan transport.Conn, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = l.Serve(ctx, func(_ context.Context, c transport.Conn) {
			accepted <- c
			wsConn := c.(*Conn)
			ReadLoop(wsConn, func(frame []byte) error {
				return c.Send(frame)
			}, func() {})
		})
	}()

	var dialErr error
	var client *websocket.Conn
	for i := 0; i < 50; i++ {
		client, _, dialErr = websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
		if dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, dialErr)
	defer client.Close()

	select {
	case c := <-accepted:
		require.NotEmpty(t, c.ID())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("ping")))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.True(t, strings.EqualFold(string(data), "ping"))
}
