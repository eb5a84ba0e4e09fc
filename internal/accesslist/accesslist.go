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

// Package accesslist gates transport accept by source address against a
// hot-reloadable allow-list file. It is the one pre-auth boundary the
// framework owns directly; JWT/session authentication proper is an
// external collaborator.
package accesslist

import (
	"os"
	"path"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"altruist/internal/logging"
)

type document struct {
	Enable  bool     `yaml:"enable"`
	Entries []string `yaml:"allow_list"`
}

// List answers whether a remote address may open a transport connection.
// It is safe for concurrent use; Reload may run on another goroutine while
// Allowed is being called.
type List struct {
	dir     string
	file    string
	enabled atomic.Bool
	entries atomic.Pointer[hashmap.HashMap]
}

// New loads confDir/confFile and begins watching confDir for changes to it.
// An empty or missing allow-list document disables gating entirely.
func New(confDir, confFile string) (*List, error) {
	l := &List{
		dir:  confDir,
		file: path.Join(confDir, confFile),
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if err := l.watch(); err != nil {
		return nil, err
	}
	return l, nil
}

// Allowed reports whether addr may proceed to the handshake.
func (l *List) Allowed(addr string) bool {
	if !l.enabled.Load() {
		return true
	}
	entries := l.entries.Load()
	if entries == nil {
		return false
	}
	_, ok := entries.Get(addr)
	return ok
}

func (l *List) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "accesslist: create watcher")
	}
	if err := watcher.Add(l.dir); err != nil {
		return errors.Wrapf(err, "accesslist: watch %s", l.dir)
	}
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != l.file {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.reload(); err != nil {
					logging.Errorf("accesslist: reload %s failed: %s", l.file, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Errorf("accesslist: watcher error: %s", err)
			}
		}
	}()
	return nil
}

func (l *List) reload() error {
	raw, err := os.ReadFile(l.file)
	if os.IsNotExist(err) {
		l.enabled.Store(false)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "accesslist: read %s", l.file)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Wrapf(err, "accesslist: unmarshal %s", l.file)
	}

	if !doc.Enable {
		l.enabled.Store(false)
		return nil
	}

	fresh := &hashmap.HashMap{}
	for _, e := range doc.Entries {
		fresh.Insert(e, struct{}{})
	}
	l.entries.Store(fresh)
	l.enabled.Store(true)
	logging.Infof("accesslist: loaded %d entries from %s", len(doc.Entries), l.file)
	return nil
}
