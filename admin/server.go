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

// Package admin is the framework's own operator-facing HTTP surface:
// pprof, Prometheus metrics, a liveness probe, and read-only room
// introspection. It carries no application routing of its own — the
// game's packet traffic never touches this package.
package admin

import (
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"altruist/connstore"
)

// roomView is the JSON shape /rooms reports for one room.
type roomView struct {
	ID          string   `json:"id"`
	MaxCapacity int      `json:"maxCapacity"`
	Members     []string `json:"members"`
}

// New builds the admin gin.Engine. isAlive may be nil, in which case
// /healthz always reports alive (a single-process deployment with no
// tick engine wired up yet, e.g. during early bring-up). Passing
// tickengine.Engine's own AppAlive check here keeps admin decoupled
// from the AppStatus type.
func New(store *connstore.Store, isAlive func() bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	pprof.Register(e)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	e.GET("/healthz", func(c *gin.Context) {
		if isAlive != nil && !isAlive() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	e.GET("/rooms", func(c *gin.Context) {
		rooms := store.AllLocalRooms()
		out := make([]roomView, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, roomView{ID: r.ID, MaxCapacity: r.MaxCapacity, Members: r.Members()})
		}
		c.JSON(http.StatusOK, out)
	})

	return e
}
