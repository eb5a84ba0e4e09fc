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
	"altruist/internal/xerrors"
	"altruist/packet"
)

// ClientSender delivers one packet to one connection id, whether that
// connection is local (written straight to its transport.Conn) or
// owned by another process (forwarded through RemoteSender).
type ClientSender struct {
	store  *connstore.Store
	codec  packet.Codec
	conns  LocalConns
	remote RemoteSender
}

func NewClientSender(store *connstore.Store, codec packet.Codec, conns LocalConns, remote RemoteSender) *ClientSender {
	return &ClientSender{store: store, codec: codec, conns: conns, remote: remote}
}

// Send resolves clientID and delivers p to it. It is a no-op, not an
// error, for an id the store doesn't recognize at all — a client that
// disconnected between scheduling and send is an ordinary race, not a
// handler failure.
func (s *ClientSender) Send(ctx context.Context, clientID string, p packet.Packet) error {
	hdr := p.Header().WithReceiver(clientID)
	p = withHeader(p, hdr)

	if conn, ok := s.conns.Lookup(clientID); ok {
		frame, err := s.codec.Encode(p)
		if err != nil {
			return xerrors.NewHandlerError(clientID, p.Type(), err)
		}
		return conn.Send(frame)
	}

	connInfo, ok, err := s.store.GetConnection(ctx, clientID)
	if err != nil {
		return err
	}
	if !ok {
		logging.Debugf("router: send to unknown connection %s dropped", clientID)
		return nil
	}
	if s.remote == nil {
		logging.Warnf("router: connection %s is owned by process %s but no RemoteSender is configured", clientID, connInfo.OwnerProcessID)
		return nil
	}
	return s.remote.SendToProcess(ctx, connInfo.OwnerProcessID, clientID, p)
}

// withHeader rewrites rewritable well-known packet types' embedded Hdr
// field to hdr without mutating the caller's original value, so a
// BroadcastSender fanning the same logical packet out to many
// recipients never shares one Header across goroutines.
func withHeader(p packet.Packet, hdr packet.Header) packet.Packet {
	switch v := p.(type) {
	case *packet.SyncPacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.JoinGamePacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.LeaveGamePacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.RoomPacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.HandshakePacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.SuccessPacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.FailedPacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	case *packet.InterprocessPacket:
		cp := *v
		cp.Hdr = hdr
		return &cp
	default:
		return p
	}
}
