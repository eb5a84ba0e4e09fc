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
	"fmt"

	"altruist/internal/logging"
	"altruist/packet"
)

// DynamicTaskSubmitter is satisfied by package tickengine's Engine. A
// submission replaces any not-yet-run submission under the same key —
// coalescing, not queuing (spec.md §4.1 DynamicTask).
type DynamicTaskSubmitter interface {
	SubmitDynamic(key string, fn func())
}

// EngineClientSender routes Client.Send calls through the tick engine's
// dynamic task table instead of sending inline. Two rapid calls to the
// same (clientID, packet type) pair before the next tick coalesce into
// one send — only the newest wins — trading latency for fewer frames
// under bursty per-tick updates (spec.md §8 coalescing scenario).
type EngineClientSender struct {
	inner  *ClientSender
	submit DynamicTaskSubmitter
}

func NewEngineClientSender(inner *ClientSender, submit DynamicTaskSubmitter) *EngineClientSender {
	return &EngineClientSender{inner: inner, submit: submit}
}

func (s *EngineClientSender) Send(ctx context.Context, clientID string, p packet.Packet) error {
	key := fmt.Sprintf("%s:%s", clientID, p.Type())
	s.submit.SubmitDynamic(key, func() {
		if err := s.inner.Send(ctx, clientID, p); err != nil {
			logging.Warnf("router: coalesced send to %s failed: %v", clientID, err)
		}
	})
	return nil
}
