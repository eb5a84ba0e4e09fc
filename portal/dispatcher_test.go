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

package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"altruist/internal/xerrors"
	"altruist/packet"
)

type basePortal struct{}

type derivedPortal struct {
	basePortal
}

type unrelatedPortal struct{}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := New()
	called := false
	require.NoError(t, d.Handle(packet.TypeJoinGame, &basePortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		called = true
		return nil
	}))

	err := d.Dispatch(context.Background(), "client-1", &packet.JoinGamePacket{})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestDispatchMissForUnregisteredType(t *testing.T) {
	d := New()
	err := d.Dispatch(context.Background(), "client-1", &packet.JoinGamePacket{})
	var miss *xerrors.DispatchMiss
	assert.ErrorAs(t, err, &miss)
}

func TestHandleMostDerivedOverrideWins(t *testing.T) {
	d := New()
	require.NoError(t, d.Handle(packet.TypeJoinGame, &basePortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		return assertNotCalled(t)
	}))

	derivedCalled := false
	require.NoError(t, d.Handle(packet.TypeJoinGame, &derivedPortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		derivedCalled = true
		return nil
	}))

	require.NoError(t, d.Dispatch(context.Background(), "c", &packet.JoinGamePacket{}))
	assert.True(t, derivedCalled, "the more-derived portal's registration must win")
}

func TestHandleBaseAfterDerivedDoesNotOverride(t *testing.T) {
	d := New()
	derivedCalled := false
	require.NoError(t, d.Handle(packet.TypeJoinGame, &derivedPortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		derivedCalled = true
		return nil
	}))
	require.NoError(t, d.Handle(packet.TypeJoinGame, &basePortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		return assertNotCalled(t)
	}))

	require.NoError(t, d.Dispatch(context.Background(), "c", &packet.JoinGamePacket{}))
	assert.True(t, derivedCalled)
}

func TestHandleUnrelatedPortalsIsConfigError(t *testing.T) {
	d := New()
	require.NoError(t, d.Handle(packet.TypeJoinGame, &basePortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		return nil
	}))

	err := d.Handle(packet.TypeJoinGame, &unrelatedPortal{}, func(ctx context.Context, clientID string, p packet.Packet) error {
		return nil
	})
	var cfgErr *xerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func assertNotCalled(t *testing.T) error {
	t.Helper()
	t.Error("shadowed handler must not be called")
	return nil
}
