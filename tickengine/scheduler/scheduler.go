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

// Package scheduler binds a (receiver type, method name) pair to a
// reflect-resolved, zero-argument invoker exactly once, then reuses
// the cached binding for every subsequent call. It exists for the one
// case tickengine itself doesn't cover: registering a periodic task by
// naming a method on a receiver rather than handing over a closure
// directly — useful when tasks are declared declaratively (struct tag,
// config file) rather than written inline at wiring time.
package scheduler

import (
	"fmt"
	"reflect"
	"sync"
)

type bindingKey struct {
	recvType   reflect.Type
	methodName string
}

// Cache memoizes reflect.Type.MethodByName lookups per (receiver
// type, method name) pair, the same "reflect once, cache forever" shape
// the codec package's Registry uses for type discriminators, just keyed
// on a method instead of a wire type name.
type Cache struct {
	mu       sync.RWMutex
	bindings map[bindingKey]reflect.Method
}

func NewCache() *Cache {
	return &Cache{bindings: make(map[bindingKey]reflect.Method)}
}

// Bind resolves methodName on receiver's type, caching the
// reflect.Method so repeat binds of the same (type, name) pair skip the
// method-set walk. It returns a zero-argument invoker; methodName must
// name a method taking no arguments and returning nothing — any other
// shape, or a missing method, is an error returned by Bind itself, at
// registration time rather than when the invoker runs.
func (c *Cache) Bind(receiver any, methodName string) (func(), error) {
	recvVal := reflect.ValueOf(receiver)
	key := bindingKey{recvType: recvVal.Type(), methodName: methodName}

	c.mu.RLock()
	method, ok := c.bindings[key]
	c.mu.RUnlock()

	if !ok {
		m, found := recvVal.Type().MethodByName(methodName)
		if !found {
			return nil, fmt.Errorf("scheduler: %s has no method %q", recvVal.Type(), methodName)
		}
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 0 {
			return nil, fmt.Errorf("scheduler: %s.%s must take no arguments and return nothing", recvVal.Type(), methodName)
		}
		c.mu.Lock()
		c.bindings[key] = m
		method = m
		c.mu.Unlock()
	}

	return func() { method.Func.Call([]reflect.Value{recvVal}) }, nil
}

// Len reports how many distinct (type, method) bindings are cached.
// Test/diagnostic use only.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bindings)
}
