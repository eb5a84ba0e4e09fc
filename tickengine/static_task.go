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

package tickengine

import "time"

// staticTask is a periodic delegate fired whenever cycleRate has
// elapsed since its last firing. The static task list is append-only
// and read via an atomic snapshot each tick, so AddStatic never blocks
// a tick in progress (spec.md §5 "static task list append-only/lock-free
// snapshot").
type staticTask struct {
	name      string
	cycleRate time.Duration
	delegate  func()
	lastFired time.Time
}

func newStaticTask(name string, cycleRate time.Duration, delegate func()) *staticTask {
	return &staticTask{name: name, cycleRate: cycleRate, delegate: delegate}
}

func (t *staticTask) dueAt(now time.Time) bool {
	return now.Sub(t.lastFired) >= t.cycleRate
}
