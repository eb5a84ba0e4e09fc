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

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	calls int
}

func (c *countingTask) Tick() { c.calls++ }

type derivedTask struct {
	countingTask
}

func TestBindInvokesMethod(t *testing.T) {
	cache := NewCache()
	task := &countingTask{}

	invoke, err := cache.Bind(task, "Tick")
	require.NoError(t, err)

	invoke()
	invoke()
	assert.Equal(t, 2, task.calls)
}

func TestBindCachesByTypeAndMethod(t *testing.T) {
	cache := NewCache()
	a := &countingTask{}
	b := &countingTask{}

	_, err := cache.Bind(a, "Tick")
	require.NoError(t, err)
	_, err = cache.Bind(b, "Tick")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len(), "same (type, method) pair reuses one cached binding")
}

func TestBindResolvesEmbeddedMethod(t *testing.T) {
	cache := NewCache()
	task := &derivedTask{}

	invoke, err := cache.Bind(task, "Tick")
	require.NoError(t, err)
	invoke()
	assert.Equal(t, 1, task.calls)
}

func TestBindUnknownMethod(t *testing.T) {
	cache := NewCache()
	_, err := cache.Bind(&countingTask{}, "NoSuchMethod")
	assert.Error(t, err)
}
