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

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"altruist/internal/logging"
)

// diagnosticLogEvery is how many task executions pass between
// diagnostic log lines, when diagnostics are enabled.
const diagnosticLogEvery = 1_000_000

// readinessPollInterval is how often Start re-checks AppStatus while
// parked waiting for the application to become AppAlive. A var, not a
// const, so tests can shrink it instead of sleeping for the production
// 5s poll floor.
var readinessPollInterval = 5 * time.Second

// Engine is the fixed-rate tick loop. The zero value is not usable —
// build one with New.
type Engine struct {
	hz       int
	interval time.Duration
	throttle time.Duration

	status atomic.Int32

	staticMu sync.Mutex
	static   atomic.Pointer[[]*staticTask]

	dynamicMu    sync.Mutex
	dynamicTasks map[string]func()

	cron gocron.Scheduler

	diagnostics bool
	execCount   atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDiagnostics enables an execution counter that logs the running
// total every diagnosticLogEvery task executions. It records no timing,
// so it reports neither throughput nor efficiency against Hz.
func WithDiagnostics() Option {
	return func(e *Engine) { e.diagnostics = true }
}

// New builds an Engine ticking at hz times per second, with a dynamic
// task awaitAll barrier bounded by throttle. throttle is typically
// config.Config.Throttle()'s value as a time.Duration in nanoseconds.
func New(hz int, throttle time.Duration, opts ...Option) (*Engine, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		hz:           hz,
		interval:     time.Second / time.Duration(hz),
		throttle:     throttle,
		dynamicTasks: make(map[string]func()),
		cron:         cron,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	empty := []*staticTask{}
	e.static.Store(&empty)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SetStatus transitions the application readiness gate. Start parks
// until this reaches AppAlive.
func (e *Engine) SetStatus(s AppStatus) {
	e.status.Store(int32(s))
}

func (e *Engine) Status() AppStatus {
	return AppStatus(e.status.Load())
}

// AddStatic registers a periodic task fired whenever cycleRate has
// elapsed. Safe to call at any time, including while the loop is
// running — the next tick sees it.
func (e *Engine) AddStatic(name string, cycleRate time.Duration, delegate func()) {
	e.staticMu.Lock()
	defer e.staticMu.Unlock()
	cur := *e.static.Load()
	next := make([]*staticTask, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, newStaticTask(name, cycleRate, delegate))
	e.static.Store(&next)
}

// SubmitDynamic schedules fn to run on the next tick under key.
// Submitting again under the same key before the next tick replaces
// the pending fn — coalescing, not queuing: only the newest submission
// for a key survives to execution (spec.md §4.1 DynamicTask; satisfies
// router.DynamicTaskSubmitter).
func (e *Engine) SubmitDynamic(key string, fn func()) {
	e.dynamicMu.Lock()
	defer e.dynamicMu.Unlock()
	e.dynamicTasks[key] = fn
}

// AddCron registers delegate against a standard cron expression,
// running on gocron's own independent wallclock timer rather than the
// tick loop.
func (e *Engine) AddCron(name, expression string, delegate func()) error {
	_, err := e.cron.NewJob(
		gocron.CronJob(expression, false),
		gocron.NewTask(func() { e.runGuarded(name, delegate) }),
		gocron.WithTags(name),
	)
	return err
}

// Start parks until the application is AppAlive, then runs the tick
// loop until Stop is called.
// Start blocks the calling goroutine; callers typically invoke it from
// its own goroutine with elevated scheduling priority where the OS
// supports it.
func (e *Engine) Start() {
	for e.Status() != AppAlive {
		select {
		case <-e.stopCh:
			close(e.doneCh)
			return
		case <-time.After(readinessPollInterval):
		}
	}

	e.cron.Start()
	defer func() {
		_ = e.cron.Shutdown()
		close(e.doneCh)
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// Stop signals the loop to exit after its current tick and blocks
// until it has. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	<-e.doneCh
}

func (e *Engine) tick(now time.Time) {
	for _, task := range *e.static.Load() {
		if task.dueAt(now) {
			task.lastFired = now
			e.runGuarded(task.name, task.delegate)
		}
	}

	e.dynamicMu.Lock()
	pending := e.dynamicTasks
	e.dynamicTasks = make(map[string]func(), len(pending))
	e.dynamicMu.Unlock()

	if len(pending) == 0 {
		return
	}

	var wg sync.WaitGroup
	for key, fn := range pending {
		wg.Add(1)
		go func(key string, fn func()) {
			defer wg.Done()
			e.runGuarded(key, fn)
		}(key, fn)
	}
	e.awaitAll(&wg)
}

// awaitAll blocks for all dynamic tasks submitted this tick, bounded by
// e.throttle: a slow task cannot stall every future tick indefinitely,
// it just stops being waited on (spec.md §4.1 "throttle-bound awaitAll
// barrier").
func (e *Engine) awaitAll(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.throttle):
		logging.Warnf("tickengine: dynamic task barrier exceeded throttle (%s)", e.throttle)
	}
}

// runGuarded executes a task delegate, recovering a panic so one
// misbehaving task never stops the loop (spec.md §7: task exceptions
// are logged and swallowed, never fatal).
func (e *Engine) runGuarded(name string, delegate func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("tickengine: task %s panicked: %v", name, r)
		}
	}()
	delegate()

	if !e.diagnostics {
		return
	}
	if n := e.execCount.Add(1); n%diagnosticLogEvery == 0 {
		logging.Infof("tickengine: %d task executions completed", n)
	}
}
