// Copyright (c) 2026 The Altruist Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"sync"
	"syscall"
	"time"

	"altruist/admin"
	"altruist/backplane"
	"altruist/config"
	"altruist/connstore"
	"altruist/deltasync"
	"altruist/internal/accesslist"
	"altruist/internal/logging"
	"altruist/internal/xerrors"
	"altruist/matchmaking"
	"altruist/packet"
	"altruist/packet/binary"
	"altruist/portal"
	"altruist/router"
	"altruist/tickengine"
	"altruist/transport"
	"altruist/transport/ws"
)

var (
	configPath      = flag.String("p", "conf", "Config file path")
	basicConfigFile = flag.String("c", "rc.yaml", "Basic config filename")
	allowListFile   = flag.String("a", "allowlist.yaml", "Connection allow-list filename")
	version         = flag.Bool("v", false, "Show version")
	help            = flag.Bool("h", false, "Show usage info")
)

var (
	CommitSHA string
	Tag       string
	BuildTime string
)

func init() {
	if len(Tag) < 1 {
		Tag = "unknown"
	}
	if len(CommitSHA) < 1 {
		CommitSHA = "unknown"
	}
	if len(BuildTime) < 1 {
		BuildTime = "unknown"
	}
}

const banner string = `
    _    _ _              _     _
   / \  | | |_ _ __ _   _(_)___| |_
  / _ \ | | __| '__| | | | / __| __|
 / ___ \| | |_| |  | |_| | \__ \ |_
/_/   \_\_|\__|_|   \__,_|_|___/\__|
`

func parseCli() {
	flag.Parse()
	if *version {
		fmt.Printf("version: %s\ncommit: %s\ntime: %s\n", Tag, CommitSHA, BuildTime)
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
}

// localConns is the process-local id -> transport.Conn registry handed
// to router as a router.LocalConns. A bare sync.Map is enough: it's
// write-once-per-connection-lifetime and read-heavy, the access pattern
// sync.Map is built for.
type localConns struct {
	m sync.Map
}

func (l *localConns) register(id string, c transport.Conn) { l.m.Store(id, c) }
func (l *localConns) unregister(id string) { l.m.Delete(id) }

func (l *localConns) Lookup(id string) (router.Conn, bool) {
	v, ok := l.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(transport.Conn), true
}

func newProcessID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%s", host, hex.EncodeToString(b[:]))
}

func main() {
	parseCli()

	cfg, err := config.LoadConfig(path.Join(*configPath, *basicConfigFile))
	if err != nil {
		logging.Errorf("parse config file err: %v", err)
		return
	}

	if err = logging.InitializeLogger(
		logging.WithPath(cfg.LogPath),
		logging.WithExpireDay(cfg.LogExpireDay),
		logging.WithLogLevel(cfg.LogLevel),
	); err != nil {
		logging.Errorf("failed to initialize logger, err: %s", err)
		return
	}

	fmt.Print(banner)
	fmt.Printf("altruist version: %s\n", Tag)
	fmt.Printf("altruist started with port: %d, pid: %d\n", cfg.Port, syscall.Getpid())
	logging.Infof("altruist started with port: %d, pid: %d, version: %s", cfg.Port, syscall.Getpid(), Tag)

	allowList, err := accesslist.New(*configPath, *allowListFile)
	if err != nil {
		logging.Errorf("failed to load connection allow-list, err: %s", err)
		return
	}

	processID := newProcessID()
	registry := packet.NewRegistry()
	codec := binary.New(registry)

	conns := &localConns{}
	store := connstore.New(nil) // RemoteStore is wired in below once the backplane exists.
	syncEngine := deltasync.New()

	engine, err := tickengine.New(cfg.Engine.Hz, time.Duration(cfg.Throttle()))
	if err != nil {
		logging.Errorf("failed to build tick engine, err: %s", err)
		return
	}

	r := router.New(store, codec, conns, nil, syncEngine) // RemoteSender wired in below too.

	dispatcher := portal.New()
	mm := matchmaking.New(store, r)
	if err := mm.Register(dispatcher); err != nil {
		logging.Errorf("portal registration failed, err: %s", err)
		if xerrors.IsFatal(err) {
			return
		}
	}

	bp := backplane.New(processID, backplane.ClientConfig{
		ContactPoints:    cfg.Cache.ContactPoints,
		Password:         cfg.Cache.Password,
		ConnectTimeoutMs: cfg.Cache.ConnectTimeoutMs,
		SyncTimeoutMs:    cfg.Cache.SyncTimeoutMs,
		AsyncTimeoutMs:   cfg.Cache.AsyncTimeoutMs,
		ReconnectFloorMs: cfg.Cache.ReconnectFloorMs,
	}, codec, registry, r.Client)

	// Rebuild the store with the backplane wired in as its Redis shadow,
	// and the router's remote sender pointed at the same backplane, now
	// that both exist. Both connstore.Store and router.Router are cheap,
	// stateless-at-construction wrappers, so reconstructing them here
	// (rather than a two-phase Init) keeps every other component's
	// constructor honest about what it actually needs.
	docs := backplane.NewDocumentStore(bp, "altruist:doc")
	shadow := backplane.NewConnectionShadow(docs)
	store = connstore.New(shadow)
	r = router.New(store, codec, conns, bp, syncEngine)
	dispatcher = portal.New()
	mm = matchmaking.New(store, r)
	if err := mm.Register(dispatcher); err != nil {
		logging.Errorf("portal registration failed, err: %s", err)
		if xerrors.IsFatal(err) {
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bp.Start(ctx)
	engine.SetStatus(tickengine.AppAlive)
	go engine.Start()

	listener := ws.New(fmt.Sprintf(":%d", cfg.Port))
	go func() {
		if err := listener.Serve(ctx, acceptHandler(store, conns, codec, dispatcher, processID, allowList)); err != nil {
			fatal := xerrors.NewFatalInternal("transport.Serve", err)
			logging.Errorf("%s", fatal)
			os.Exit(1)
		}
	}()

	if cfg.WebPort > 0 {
		isAlive := func() bool { return engine.Status() == tickengine.AppAlive }
		adminSrv := &http.Server{Handler: admin.New(store, isAlive), Addr: fmt.Sprintf(":%d", cfg.WebPort)}
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("admin server failed, err: %s", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Infof("altruist shutting down, pid: %d", syscall.Getpid())
	cancel()
	_ = listener.Close()
	engine.Stop()
	bp.Stop()
	logging.Infof("altruist shutdown complete, pid: %d, listen: %d", syscall.Getpid(), cfg.Port)
}

// acceptHandler gates each newly accepted connection against allowList,
// registers the ones it admits with the store and local registry, then
// reads frames from it until close, dispatching every decoded packet
// through the portal dispatcher. It runs on its own goroutine per
// connection, per spec.md §5.
func acceptHandler(store *connstore.Store, conns *localConns, codec packet.Codec, dispatcher *portal.Dispatcher, processID string, allowList *accesslist.List) transport.AcceptHandler {
	return func(ctx context.Context, tc transport.Conn) {
		if allowList != nil && !allowList.Allowed(tc.RemoteAddr()) {
			logging.Warnf("accept: rejected %s: not on allow-list", tc.RemoteAddr())
			_ = tc.Close()
			return
		}

		wsConn, ok := tc.(*ws.Conn)
		if !ok {
			logging.Warnf("accept: unsupported connection type %T", tc)
			return
		}

		id := tc.ID()
		conn := connstore.NewConnection(id, connstore.TransportWebsocket, processID)
		if !store.AddConnection(ctx, conn) {
			logging.Warnf("accept: duplicate connection id %s", id)
			return
		}
		conns.register(id, tc)
		store.SetState(ctx, conn, connstore.StateAuthenticated)

		defer func() {
			conns.unregister(id)
			store.RemoveConnection(ctx, id)
		}()

		ws.ReadLoop(wsConn, func(frame []byte) error {
			p, err := codec.Decode(frame)
			if err != nil {
				return err
			}
			err = dispatcher.Dispatch(ctx, id, p)
			if _, miss := err.(*xerrors.DispatchMiss); miss {
				// Already logged once per type by the dispatcher; drop it.
				return nil
			}
			return err
		}, func() {})
	}
}
