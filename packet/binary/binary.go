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

// Package binary implements the preferred wire codec: a fixed binary
// header (timestamp, sender, receiver, type) followed by a
// length-delimited payload segment. The header fields are true binary;
// the payload segment is JSON, keeping the per-type encoding generic
// without a code generator for every registered packet type (see
// DESIGN.md for why that tradeoff was made instead of hand-writing a
// binary marshaller per type).
package binary

import (
	"encoding/binary"
	"encoding/json"

	"github.com/valyala/bytebufferpool"

	"altruist/internal/xerrors"
	"altruist/packet"
)

// Codec implements packet.Codec against the framing described above.
type Codec struct {
	registry *packet.Registry
}

func New(registry *packet.Registry) *Codec {
	return &Codec{registry: registry}
}

var _ packet.Codec = (*Codec)(nil)

// Encode writes p as a length-delimited binary frame. The returned slice
// is owned by the caller.
func (c *Codec) Encode(p packet.Packet) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	hdr := p.Header()
	typ := p.Type()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(hdr.TimestampMs))
	buf.Write(scratch[:])

	writeString(buf, hdr.Sender)
	writeString(buf, hdr.Receiver)
	writeString(buf, typ)

	binary.BigEndian.PutUint32(scratch[:4], uint32(len(payload)))
	buf.Write(scratch[:4])
	buf.Write(payload)

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

// Decode parses a frame previously produced by Encode. It returns a
// *xerrors.DecodeError wrapping the underlying cause on any malformed
// input.
func (c *Codec) Decode(frame []byte) (packet.Packet, error) {
	r := newReader(frame)

	tsRaw, err := r.readN(8)
	if err != nil {
		return nil, xerrors.NewDecodeError("<unknown>", err)
	}
	ts := int64(binary.BigEndian.Uint64(tsRaw))

	sender, err := r.readString()
	if err != nil {
		return nil, xerrors.NewDecodeError("<unknown>", err)
	}
	receiver, err := r.readString()
	if err != nil {
		return nil, xerrors.NewDecodeError("<unknown>", err)
	}
	typ, err := r.readString()
	if err != nil {
		return nil, xerrors.NewDecodeError("<unknown>", err)
	}

	payloadLenRaw, err := r.readN(4)
	if err != nil {
		return nil, xerrors.NewDecodeError(typ, err)
	}
	payloadLen := binary.BigEndian.Uint32(payloadLenRaw)
	payload, err := r.readN(int(payloadLen))
	if err != nil {
		return nil, xerrors.NewDecodeError(typ, err)
	}

	body, ok := c.registry.New(typ)
	if !ok {
		return nil, xerrors.NewDecodeError(typ, xerrors.ErrUnknownPacketType)
	}
	if err := json.Unmarshal(payload, body); err != nil {
		return nil, xerrors.NewDecodeError(typ, err)
	}

	if setter, ok := body.(headerSetter); ok {
		setter.setHeader(packet.Header{TimestampMs: ts, Sender: sender, Receiver: receiver})
	}
	return body, nil
}

// headerSetter lets the codec stamp the decoded header back onto a
// packet whose Hdr field was not itself part of the JSON payload
// boundary in a hand-rolled binary type. The well-known types already
// carry Hdr in their JSON tag, so this is only exercised by custom
// packet types that opt in.
type headerSetter interface {
	setHeader(packet.Header)
}

func writeString(buf *bytebufferpool.ByteBuffer, s string) {
	var scratch [2]byte
	binary.BigEndian.PutUint16(scratch[:], uint16(len(s)))
	buf.Write(scratch[:])
	buf.WriteString(s)
}

type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, xerrors.ErrIncompletePacket
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readString() (string, error) {
	lenRaw, err := r.readN(2)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lenRaw))
	raw, err := r.readN(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
