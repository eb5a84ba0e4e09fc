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

// Package tickengine runs the framework's fixed-rate game loop: static
// periodic tasks, coalescing dynamic tasks, and independent wallclock
// cron jobs, gated on application readiness.
package tickengine

// AppStatus is the coarse lifecycle state the engine waits on before it
// starts ticking — analogous to the teacher's own startup gate in
// core/server, generalized from "listener bound" to "application ready".
type AppStatus int32

const (
	AppStarting AppStatus = iota
	AppAlive
	AppStopping
)

func (s AppStatus) String() string {
	switch s {
	case AppStarting:
		return "Starting"
	case AppAlive:
		return "Alive"
	case AppStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}
