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

// Package json implements the compatible fallback codec: a flat JSON
// envelope carrying the type discriminator alongside the payload, so it
// can be read by clients that don't speak the binary framing.
package json

import (
	"encoding/json"

	"altruist/internal/xerrors"
	"altruist/packet"
)

type wireEnvelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Codec implements packet.Codec over plain JSON.
type Codec struct {
	registry *packet.Registry
}

func New(registry *packet.Registry) *Codec {
	return &Codec{registry: registry}
}

var _ packet.Codec = (*Codec)(nil)

func (c *Codec) Encode(p packet.Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Type: p.Type(), Body: body})
}

func (c *Codec) Decode(data []byte) (packet.Packet, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, xerrors.NewDecodeError("<unknown>", err)
	}

	body, ok := c.registry.New(env.Type)
	if !ok {
		return nil, xerrors.NewDecodeError(env.Type, xerrors.ErrUnknownPacketType)
	}
	if err := json.Unmarshal(env.Body, body); err != nil {
		return nil, xerrors.NewDecodeError(env.Type, err)
	}
	return body, nil
}
