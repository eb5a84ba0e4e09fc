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

package backplane

import (
	"context"

	"altruist/connstore"
)

const connectionDocumentGroup = "conn"

// ConnectionShadow adapts DocumentStore to connstore.RemoteStore: the
// cross-process view of connections owned by other processes, persisted
// as plain JSON documents under the "conn" group.
type ConnectionShadow struct {
	docs *DocumentStore
}

// NewConnectionShadow returns a connstore.RemoteStore backed by docs.
func NewConnectionShadow(docs *DocumentStore) *ConnectionShadow {
	return &ConnectionShadow{docs: docs}
}

var _ connstore.RemoteStore = (*ConnectionShadow)(nil)

func (s *ConnectionShadow) SaveConnection(ctx context.Context, snap connstore.Snapshot) error {
	return s.docs.Save(ctx, connectionDocumentGroup, snap.ID, snap)
}

func (s *ConnectionShadow) LookupConnection(ctx context.Context, id string) (connstore.Snapshot, bool, error) {
	var snap connstore.Snapshot
	ok, err := s.docs.Get(ctx, connectionDocumentGroup, id, &snap)
	return snap, ok, err
}

func (s *ConnectionShadow) RemoveConnection(ctx context.Context, id string) error {
	return s.docs.Remove(ctx, connectionDocumentGroup, id)
}
