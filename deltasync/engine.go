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

package deltasync

import (
	"fmt"
	"reflect"
	"sync"
)

// maxSyncedProperties is the ceiling a single entity type's synced
// field count must not exceed: deltas are packed into a uint64
// bitmask, one bit per property.
const maxSyncedProperties = 64

// lastKey identifies one client's view of one entity. The spec's data
// model describes SyncState keyed by (clientId, entityType) alone;
// this engine extends the key with entityId, since a client routinely
// observes more than one instance of the same entity type (every other
// player in its room, say) and those instances must not share one
// delta-tracking slot — see DESIGN.md.
type lastKey struct {
	clientID   string
	entityType string
	entityID   string
}

// Engine computes and tracks per-client entity sync deltas.
type Engine struct {
	propsMu sync.RWMutex
	props   map[reflect.Type][]property

	stateMu sync.Mutex
	state   map[lastKey][]any
}

func New() *Engine {
	return &Engine{
		props: make(map[reflect.Type][]property),
		state: make(map[lastKey][]any),
	}
}

func (e *Engine) propertiesFor(t reflect.Type) ([]property, error) {
	e.propsMu.RLock()
	props, ok := e.props[t]
	e.propsMu.RUnlock()
	if ok {
		return props, nil
	}

	props = collectProperties(t)
	if len(props) > maxSyncedProperties {
		return nil, fmt.Errorf("deltasync: %s has %d synced properties, exceeds the %d-bit mask limit", t, len(props), maxSyncedProperties)
	}

	e.propsMu.Lock()
	e.props[t] = props
	e.propsMu.Unlock()
	return props, nil
}

// ComputeDelta compares entity's tagged fields against the last
// observed values for (clientID, entityType, entityID), returning the
// changed-property bitmask and a name->value payload of just what
// changed. forceAll marks every property changed regardless of its
// last observed value, for a first-send or join snapshot. Satisfies
// router.SyncComputer.
func (e *Engine) ComputeDelta(clientID, entityType, entityID string, entity any, forceAll bool) (uint64, map[string]any, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, nil, fmt.Errorf("deltasync: entity must be a struct or pointer to struct, got %s", v.Kind())
	}

	props, err := e.propertiesFor(v.Type())
	if err != nil {
		return 0, nil, err
	}
	if len(props) == 0 {
		return 0, nil, nil
	}

	key := lastKey{clientID: clientID, entityType: entityType, entityID: entityID}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	last, ok := e.state[key]
	if !ok {
		last = make([]any, len(props))
		e.state[key] = last
		forceAll = true
	}

	var mask uint64
	changed := make(map[string]any)
	for i, p := range props {
		cur := v.FieldByIndex(p.index).Interface()
		if forceAll || !reflect.DeepEqual(cur, last[i]) {
			mask |= 1 << uint(i)
			changed[p.name] = cur
			last[i] = cur
		}
	}
	return mask, changed, nil
}

// BitIndex returns the stable bit index assigned to propertyName on
// entityType, or -1 if entityType has no such synced property. Exposed
// mainly for tests that need to assert a specific bit fired.
func (e *Engine) BitIndex(entityType reflect.Type, propertyName string) int {
	props, err := e.propertiesFor(entityType)
	if err != nil {
		return -1
	}
	for i, p := range props {
		if p.name == propertyName {
			return i
		}
	}
	return -1
}

// Forget drops tracked state for (clientID, entityType, entityID),
// e.g. when a client leaves a room and its view of that entity should
// force a fresh snapshot if it ever rejoins.
func (e *Engine) Forget(clientID, entityType, entityID string) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	delete(e.state, lastKey{clientID: clientID, entityType: entityType, entityID: entityID})
}
