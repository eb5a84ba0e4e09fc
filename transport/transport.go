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

// Package transport defines the minimal surface a wire transport must
// offer the framework: a full-duplex, per-connection byte channel, with
// concrete adapters (transport/ws today) doing the protocol-specific
// work. Full TLS termination and HTTP routing live outside this
// package; a transport only has to hand the framework a live Conn.
package transport

import "context"

// Conn is one accepted connection's send/close surface. Implementations
// must make Send safe for concurrent callers — the router's senders
// never serialize calls to a given Conn on their own.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
	RemoteAddr() string
}

// AcceptHandler is invoked once per newly accepted Conn, before the
// framework has assigned it a connstore.Connection. Handlers typically
// hand the Conn to the framework's connection-registration path and
// then block reading frames until Close.
type AcceptHandler func(ctx context.Context, conn Conn)

// Listener is a running transport instance.
type Listener interface {
	// Serve blocks accepting connections and invoking handler for each,
	// until ctx is canceled or an unrecoverable error occurs.
	Serve(ctx context.Context, handler AcceptHandler) error
	Close() error
	Addr() string
}
