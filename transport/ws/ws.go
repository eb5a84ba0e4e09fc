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

// Package ws adapts gorilla/websocket into a transport.Listener. It is
// the framework's one concrete wire transport; UDP/TCP listeners named
// in connstore.TransportKind are reserved for a deployment that needs
// them but aren't implemented here (see DESIGN.md).
package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"altruist/internal/logging"
	"altruist/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps one upgraded *websocket.Conn. Send is safe for concurrent
// callers; gorilla's Conn is not, so writes are serialized with a
// mutex, matching the transport.Conn contract.
type Conn struct {
	id   string
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{id: randomID(), ws: ws}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() { err = c.ws.Close() })
	return err
}

func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

var _ transport.Conn = (*Conn)(nil)

// Listener serves one HTTP path as a websocket upgrade endpoint.
type Listener struct {
	addr string

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New binds addr (host:port). The actual listen happens lazily in
// Serve, matching net/http.Server's own lifecycle.
func New(addr string) *Listener {
	return &Listener{addr: addr}
}

func (l *Listener) Addr() string { return l.addr }

// Serve upgrades every request on path "/" to a websocket and invokes
// handler for each. It blocks until ctx is canceled.
func (l *Listener) Serve(ctx context.Context, handler transport.AcceptHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnf("ws: upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		conn := newConn(ws)
		handler(ctx, conn)
	})

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.listener = ln
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := l.srv
	l.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return l.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.srv == nil {
		return nil
	}
	return l.srv.Close()
}

// ReadLoop reads frames from conn until it closes, invoking onFrame for
// each. It runs on the accept handler's own goroutine per spec.md §5
// ("one goroutine/task per connection").
func ReadLoop(conn *Conn, onFrame func(frame []byte) error, onClose func()) {
	defer onClose()
	for {
		msgType, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if err := onFrame(data); err != nil {
			logging.Warnf("ws: frame handler for %s: %v", conn.id, err)
		}
	}
}

func randomID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
