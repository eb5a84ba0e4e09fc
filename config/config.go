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

// Package config loads and validates the one YAML document that drives
// an altruist deployment: transport/admin ports, the tick engine, the
// Redis backplane, and logging.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"altruist/internal/logging"
)

// TimeUnit names how EngineHz is to be read. It is validated at load
// time but not passed to the tick engine, which always treats Hz as
// ticks per second.
type TimeUnit string

const (
	UnitHz    TimeUnit = "Hz"
	UnitTicks TimeUnit = "Ticks"
)

type Config struct {
	Port         int    `yaml:"port"`
	WebPort      int    `yaml:"web_port"`
	LogPath      string `yaml:"log_path"`
	LogLevel     string `yaml:"log_level"`
	LogExpireDay int    `yaml:"log_expire_day"`

	Engine    engineConfig    `yaml:"engine"`
	Cache     cacheConfig     `yaml:"cache"`
	Transport transportConfig `yaml:"transport"`
}

type engineConfig struct {
	// Hz is the fixed tick rate; default 30, must be > 0.
	Hz int `yaml:"hz"`
	// Unit names Hz vs. a raw per-tick budget; see TimeUnit, it does
	// not change how the tick engine uses Hz.
	Unit TimeUnit `yaml:"unit"`
	// Throttle is handed to the tick engine as its dynamic-task awaitAll
	// barrier timeout, in nanoseconds; it does not limit how many dynamic
	// tasks run at once. 0 means "use the default".
	Throttle int `yaml:"throttle"`
}

type cacheConfig struct {
	ContactPoints    []string `yaml:"contact_points"`
	Password         string   `yaml:"password"`
	ConnectTimeoutMs int      `yaml:"connect_timeout_ms"`
	SyncTimeoutMs    int      `yaml:"sync_timeout_ms"`
	AsyncTimeoutMs   int      `yaml:"async_timeout_ms"`
	ReconnectFloorMs int      `yaml:"reconnect_floor_ms"`
}

type transportConfig struct {
	KeepAliveMinutes int `yaml:"keep_alive_minutes"`
}

// defaults mirrors spec.md §6's "Configuration (enumerated)" table.
func defaults() Config {
	return Config{
		LogPath:      "log",
		LogLevel:     logging.LevelInfo,
		LogExpireDay: 7,
		Engine: engineConfig{
			Hz:   30,
			Unit: UnitHz,
		},
		Cache: cacheConfig{
			ContactPoints:    []string{"localhost:6379"},
			ConnectTimeoutMs: 1000,
			SyncTimeoutMs:    1000,
			AsyncTimeoutMs:   1000,
			ReconnectFloorMs: 5000,
		},
		Transport: transportConfig{
			KeepAliveMinutes: 2,
		},
	}
}

// DefaultThrottle implements the formula in spec.md §6:
// ⌊10^9 / (hz + 1)⌋.
func (c *Config) DefaultThrottle() int {
	return int(1_000_000_000 / (int64(c.Engine.Hz) + 1))
}

// Throttle returns the configured throttle, or the computed default when
// unset.
func (c *Config) Throttle() int {
	if c.Engine.Throttle > 0 {
		return c.Engine.Throttle
	}
	return c.DefaultThrottle()
}

func LoadConfig(fileName string) (*Config, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file from %s", fileName)
	}
	cfg := defaults()
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", fileName)
	}
	if err = cfg.validate(); err != nil {
		return nil, errors.Wrapf(err, "config validate failed")
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := logging.LevelMapperRev[c.LogLevel]; !ok {
		return errors.Errorf("unknown log level %s", c.LogLevel)
	}
	if c.Engine.Hz <= 0 {
		return errors.Errorf("engine.hz must be > 0, got %d", c.Engine.Hz)
	}
	if c.Engine.Unit != UnitHz && c.Engine.Unit != UnitTicks {
		return errors.Errorf("engine.unit must be %q or %q, got %q", UnitHz, UnitTicks, c.Engine.Unit)
	}
	if len(c.Cache.ContactPoints) < 1 {
		return errors.Errorf("cache.contactPoints must list at least one host:port")
	}
	return nil
}
