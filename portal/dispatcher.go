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

// Package portal dispatches an incoming packet to the handler
// registered for its wire type. Portals self-register at startup by
// calling Handle directly — there is no attribute/reflection scan over
// a package looking for gate-annotated methods (the spec's Design
// Notes call that out explicitly as the one thing to not carry over).
package portal

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"altruist/internal/logging"
	"altruist/internal/xerrors"
	"altruist/packet"
)

// Handler processes one packet addressed to clientID.
type Handler func(ctx context.Context, clientID string, p packet.Packet) error

// Registrar is implemented by a user-defined portal type that registers
// its own gate methods against a Dispatcher at startup — explicit
// registration standing in for the source framework's
// reflection/attribute discovery (see Design Notes item 1).
type Registrar interface {
	Register(d *Dispatcher) error
}

type registration struct {
	portalType reflect.Type
	handler    Handler
}

// Dispatcher maps a packet's wire type to the portal handler registered
// for it.
type Dispatcher struct {
	mu    sync.RWMutex
	gates map[string]registration

	missMu sync.Mutex
	warned map[string]bool
}

func New() *Dispatcher {
	return &Dispatcher{
		gates:  make(map[string]registration),
		warned: make(map[string]bool),
	}
}

// Handle registers handler for packetType, owned by portal. portal is
// used only to resolve "most derived wins" on a collision — it is not
// retained beyond that type check.
//
// A second Handle call for a packetType already owned by a different,
// unrelated portal type is a startup ConfigError: the spec requires a
// deterministic resolution (most-derived override wins), and without a
// derivation relationship between the two portals there is no
// principled way to pick a winner. A portal type that embeds the
// previously-registered portal's type is considered a override and
// silently wins, matching ordinary Go method-set shadowing semantics.
func (d *Dispatcher) Handle(packetType string, portal any, handler Handler) error {
	portalType := reflect.TypeOf(portal)

	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.gates[packetType]
	if !ok {
		d.gates[packetType] = registration{portalType: portalType, handler: handler}
		return nil
	}

	switch {
	case existing.portalType == portalType:
		// Re-registration by the same portal type (e.g. re-init) simply
		// replaces the handler.
		d.gates[packetType] = registration{portalType: portalType, handler: handler}
		return nil
	case embeds(portalType, existing.portalType):
		// portal is a more-derived override of the existing owner.
		d.gates[packetType] = registration{portalType: portalType, handler: handler}
		return nil
	case embeds(existing.portalType, portalType):
		// portal is a base of the existing, more-derived owner: existing
		// registration already wins, nothing to do.
		return nil
	default:
		return xerrors.NewConfigError("portal.Handle",
			fmt.Errorf("duplicate gate for packet type %q: %s and %s are unrelated portals: %w",
				packetType, existing.portalType, portalType, xerrors.ErrDuplicateGate))
	}
}

// Dispatch routes p to its registered handler. A packet type with no
// registration returns a *xerrors.DispatchMiss on every occurrence; the
// dispatcher logs a warning only for the first miss of each type.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, p packet.Packet) error {
	d.mu.RLock()
	reg, ok := d.gates[p.Type()]
	d.mu.RUnlock()

	if !ok {
		d.logMissOnce(p.Type())
		return xerrors.NewDispatchMiss(p.Type())
	}
	return reg.handler(ctx, clientID, p)
}

func (d *Dispatcher) logMissOnce(packetType string) {
	d.missMu.Lock()
	defer d.missMu.Unlock()
	if d.warned[packetType] {
		return
	}
	d.warned[packetType] = true
	logging.Warnf("portal: no handler registered for packet type %q", packetType)
}

// embeds reports whether derived has base anonymously embedded,
// directly or transitively, giving Go's ordinary method-set shadowing
// a name to check against at registration time.
func embeds(derived, base reflect.Type) bool {
	for derived.Kind() == reflect.Ptr {
		derived = derived.Elem()
	}
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if derived.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < derived.NumField(); i++ {
		f := derived.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft == base {
			return true
		}
		if embeds(f.Type, base) {
			return true
		}
	}
	return false
}
