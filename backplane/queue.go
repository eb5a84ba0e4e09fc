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

package backplane

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"altruist/internal/logging"
	"altruist/internal/xerrors"
	"altruist/packet"
)

const (
	// ingressQueueKey is the shared list every process LPUSHes packets
	// addressed to its connections onto, and RPOPs its own deliveries from.
	ingressQueueKey = "altruist:ingress:queue"
	// ingressNotifyChannel is published to (empty message) after every
	// LPUSH so idle consumers don't have to poll the queue.
	ingressNotifyChannel = "altruist:ingress:distribute"
)

// Deliverer hands an already-resolved packet to a local connection.
// router.ClientSender.Send satisfies this.
type Deliverer interface {
	Send(ctx context.Context, clientID string, p packet.Packet) error
}

// Backplane is the Redis-backed cross-process transport and document
// store. One Backplane instance exists per process; ProcessID is that
// process's identity for InterprocessPacket loop prevention.
type Backplane struct {
	ProcessID string

	client   redisClient
	codec    packet.Codec
	registry *packet.Registry
	deliver  Deliverer
	policy   *reconnectPolicy

	subMu      sync.Mutex
	subscribed bool
	subCancel  context.CancelFunc
	subDone    chan struct{}
}

// New builds a Backplane against cfg, ready to be started with Start.
// deliver is called for every packet this process drains off the
// ingress queue that isn't a loop of its own send.
func New(processID string, cfg ClientConfig, codec packet.Codec, registry *packet.Registry, deliver Deliverer) *Backplane {
	client := newRedisClient(cfg)
	return newWithClient(processID, client, durationOrDefault(cfg.ReconnectFloorMs, 5000), codec, registry, deliver)
}

func newWithClient(processID string, client redisClient, floor time.Duration, codec packet.Codec, registry *packet.Registry, deliver Deliverer) *Backplane {
	b := &Backplane{
		ProcessID: processID,
		client:    client,
		codec:     codec,
		registry:  registry,
		deliver:   deliver,
	}
	b.policy = newReconnectPolicy(client, floor, b.onConnectionFailed, b.onConnectionRestored)
	return b
}

// Start begins the reconnect monitor and subscribes to the ingress
// notification channel.
func (b *Backplane) Start(ctx context.Context) {
	b.policy.start()
	b.subscribe(ctx)
}

// Stop tears down the subscription and the reconnect monitor.
func (b *Backplane) Stop() {
	b.unsubscribe()
	b.policy.stop()
	if closer, ok := b.client.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// onConnectionFailed clears the subscription so ConnectionRestored
// re-subscribes exactly once per outage, per spec.md §4.4: "subscribed
// channels ... cleared on ConnectionFailed, re-subscribed on
// ConnectionRestored".
func (b *Backplane) onConnectionFailed() {
	b.unsubscribe()
}

func (b *Backplane) onConnectionRestored() {
	b.subscribe(context.Background())
	// A notification could have been published while this process was
	// down; do one unconditional drain on restore so nothing sent during
	// the outage is stranded on the queue until the next organic publish.
	b.drainOnce(context.Background())
}

// subscribe is an idempotent subscribe: a second call while already
// subscribed is a no-op.
func (b *Backplane) subscribe(ctx context.Context) {
	b.subMu.Lock()
	if b.subscribed {
		b.subMu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(subCtx, ingressNotifyChannel)
	b.subscribed = true
	b.subCancel = cancel
	b.subDone = make(chan struct{})
	done := b.subDone
	b.subMu.Unlock()

	go b.notifyLoop(subCtx, pubsub, done)
}

func (b *Backplane) unsubscribe() {
	b.subMu.Lock()
	if !b.subscribed {
		b.subMu.Unlock()
		return
	}
	b.subscribed = false
	cancel := b.subCancel
	done := b.subDone
	b.subMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// notifyLoop blocks on pubsub notifications and drains the ingress
// queue to empty on each one. This is the single-consumer-per-process
// drain spec.md §4.4 describes: at-most-once local delivery, FIFO per
// drain.
func (b *Backplane) notifyLoop(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			b.drainOnce(ctx)
		}
	}
}

// drainOnce RPOPs the ingress queue until empty, delivering every entry
// not sent by this same process.
func (b *Backplane) drainOnce(ctx context.Context) {
	for {
		raw, err := b.client.RPop(ctx, ingressQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			return
		}
		if err != nil {
			logging.Warnf("backplane: ingress rpop: %v", err)
			return
		}
		b.deliverFrame(ctx, []byte(raw))
	}
}

func (b *Backplane) deliverFrame(ctx context.Context, frame []byte) {
	decoded, err := b.codec.Decode(frame)
	if err != nil {
		logging.Warnf("backplane: ingress decode: %v", err)
		return
	}
	ipp, ok := decoded.(*packet.InterprocessPacket)
	if !ok {
		logging.Warnf("backplane: ingress frame was not an InterprocessPacket (got %s)", decoded.Type())
		return
	}
	if ipp.ProcessID == "" || ipp.ProcessID == b.ProcessID {
		return
	}
	inner, ok, err := ipp.Inner(b.registry)
	if err != nil {
		logging.Warnf("backplane: ingress inner decode: %v", err)
		return
	}
	if !ok {
		logging.Warnf("backplane: ingress inner type %q unregistered", ipp.InnerType)
		return
	}
	clientID := ipp.Hdr.Receiver
	if err := b.deliver.Send(ctx, clientID, inner); err != nil {
		logging.Warnf("backplane: local delivery of %s to %s: %v", inner.Type(), clientID, err)
	}
}

// SendToProcess satisfies router.RemoteSender: it wraps p for clientID
// in an InterprocessPacket tagged with this process's id and pushes it
// onto the shared ingress queue, then publishes an empty notification so
// an idle consumer wakes immediately rather than waiting for its own
// next drain.
func (b *Backplane) SendToProcess(ctx context.Context, processID, clientID string, p packet.Packet) error {
	ipp := &packet.InterprocessPacket{
		Hdr:       p.Header().WithReceiver(clientID),
		ProcessID: b.ProcessID,
	}
	if err := ipp.SetInner(p); err != nil {
		return xerrors.NewHandlerError(clientID, p.Type(), err)
	}
	frame, err := b.codec.Encode(ipp)
	if err != nil {
		return xerrors.NewHandlerError(clientID, p.Type(), err)
	}
	if err := b.client.LPush(ctx, ingressQueueKey, frame).Err(); err != nil {
		return xerrors.NewTransientIOError("backplane.SendToProcess.lpush", err)
	}
	if err := b.client.Publish(ctx, ingressNotifyChannel, "").Err(); err != nil {
		logging.Warnf("backplane: publish ingress notification: %v", err)
	}
	return nil
}
