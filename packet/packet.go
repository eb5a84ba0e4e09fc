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

// Package packet defines the wire-level packet model: an immutable
// header plus a typed, registry-resolved payload.
package packet

// Header carries the fields common to every packet. Packets are values;
// a per-recipient rewrite of Receiver during broadcast produces a new
// Header rather than mutating a shared one (Design Notes: "prefer
// immutable packet payloads").
type Header struct {
	// TimestampMs is milliseconds since the UTC epoch.
	TimestampMs int64  `json:"timestamp"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver,omitempty"`
}

// WithReceiver returns a copy of h addressed to receiver, leaving h
// itself untouched.
func (h Header) WithReceiver(receiver string) Header {
	h.Receiver = receiver
	return h
}

// Packet is any payload the registry knows how to encode/decode.
// Type is the wire discriminator used to look up both the codec
// path and the PortalDispatcher handler.
type Packet interface {
	Header() Header
	Type() string
}

// Codec encodes and decodes packets for one wire format. Codecs must be
// symmetric: Decode(Encode(p)) == p for every type in the shared
// Registry (spec.md §6).
type Codec interface {
	Encode(p Packet) ([]byte, error)
	Decode(frame []byte) (Packet, error)
}

// Envelope pairs a header with a registry-resolved Packet body. The
// binary and JSON codecs in this module do not use it; they encode and
// decode Packet values directly.
type Envelope struct {
	Hdr  Header
	Body Packet
}
