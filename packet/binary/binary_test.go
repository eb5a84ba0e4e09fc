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

package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altruist/internal/xerrors"
	"altruist/packet"
)

func roundTripFixtures(t *testing.T) []packet.Packet {
	t.Helper()

	var interprocess packet.InterprocessPacket
	require.NoError(t, interprocess.SetInner(&packet.SuccessPacket{
		Hdr:     packet.Header{TimestampMs: 42, Sender: "srv-1"},
		Message: "welcome",
	}))
	interprocess.Hdr = packet.Header{TimestampMs: 42, Sender: "srv-1"}
	interprocess.ProcessID = "proc-a"

	return []packet.Packet{
		&packet.SyncPacket{
			Hdr:        packet.Header{TimestampMs: 1000, Sender: "room-1"},
			EntityType: "Player",
			EntityID:   "p-1",
			Data:       map[string]any{"x": 1.5, "y": 2.0},
		},
		&packet.JoinGamePacket{
			Hdr:    packet.Header{TimestampMs: 1001, Sender: "client-1"},
			Name:   "alice",
			RoomID: "room-1",
		},
		&packet.LeaveGamePacket{
			Hdr:      packet.Header{TimestampMs: 1002, Sender: "client-1"},
			ClientID: "client-1",
		},
		&packet.RoomPacket{
			Hdr:           packet.Header{TimestampMs: 1003, Sender: "server"},
			ID:            "room-1",
			MaxCapacity:   100,
			ConnectionIDs: []string{"client-1", "client-2"},
		},
		&packet.HandshakePacket{
			Hdr: packet.Header{TimestampMs: 1004, Sender: "server"},
			Rooms: []packet.RoomPacket{
				{ID: "room-1", MaxCapacity: 100},
			},
		},
		&packet.SuccessPacket{
			Hdr:     packet.Header{TimestampMs: 1005, Sender: "server"},
			Message: "joined",
		},
		&packet.FailedPacket{
			Hdr:    packet.Header{TimestampMs: 1006, Sender: "server"},
			Reason: "room full",
		},
		&interprocess,
	}
}

func TestCodecEncodeDecodeRoundTrip(t *testing.T) {
	registry := packet.NewRegistry()
	codec := New(registry)

	for _, p := range roundTripFixtures(t) {
		p := p
		t.Run(p.Type(), func(t *testing.T) {
			frame, err := codec.Encode(p)
			require.NoError(t, err)

			decoded, err := codec.Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecodeUnknownTypeIsDecodeError(t *testing.T) {
	encodingCodec := New(packet.NewRegistry())

	frame, err := encodingCodec.Encode(&ghostPacket{Hdr: packet.Header{Sender: "x"}})
	require.NoError(t, err)

	// Decode with a registry that never learned about GhostPacket.
	decodingCodec := New(packet.NewRegistry())
	_, err = decodingCodec.Decode(frame)
	require.Error(t, err)
	var decodeErr *xerrors.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

type ghostPacket struct {
	Hdr packet.Header `json:"header"`
}

func (g *ghostPacket) Header() packet.Header { return g.Hdr }
func (g *ghostPacket) Type() string          { return "GhostPacket" }

func TestDecodeTruncatedFrameIsIncomplete(t *testing.T) {
	codec := New(packet.NewRegistry())
	_, err := codec.Decode([]byte{0, 1, 2})
	require.Error(t, err)
	var decodeErr *xerrors.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, xerrors.ErrIncompletePacket)
}
