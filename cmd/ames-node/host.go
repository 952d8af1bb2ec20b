package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ames/pkg/peer"
	"ames/pkg/peerstats"
	"ames/pkg/persist"
	"ames/pkg/transport"
)

// host drives a Transport from a real UDP conn: one goroutine reads
// datagrams and turns them into tasks, armed timers fire back in as
// tasks of their own, and a single loop feeds every task to Dispatch
// and carries out the effects it returns. coreMu serializes that loop
// against the periodic snapshot sweep and the startup sponsor
// bootstrap, the only other code that touches the Transport's peer map
// while the loop runs.
type host struct {
	transport *peer.Transport
	conn      transport.Conn
	store     *persist.Store
	stats     *peerstats.Store

	coreMu sync.Mutex
	timers map[peer.TimerWire]*time.Timer
	tasks  chan peer.Task

	log *zap.Logger
}

func newHost(t *peer.Transport, conn transport.Conn, store *persist.Store, stats *peerstats.Store, log *zap.Logger) *host {
	return &host{
		transport: t,
		conn:      conn,
		store:     store,
		stats:     stats,
		timers:    make(map[peer.TimerWire]*time.Timer),
		tasks:     make(chan peer.Task, 256),
		log:       log,
	}
}

// dispatch runs task through the core under coreMu and carries out its
// effects; safe to call from any goroutine.
func (h *host) dispatch(task peer.Task) {
	h.coreMu.Lock()
	effects := h.transport.Dispatch(task)
	h.coreMu.Unlock()
	h.runEffects(effects)
}

// run processes tasks until ctx is cancelled. It owns the task channel
// end-to-end: submit feeds it, run drains it.
func (h *host) run(ctx context.Context) {
	h.dispatch(peer.Task{Kind: peer.TaskBorn, Now: time.Now()})
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-h.tasks:
			h.dispatch(task)
		}
	}
}

// submit enqueues a task from another goroutine (the UDP reader, a
// fired timer, the oracle drain loop).
func (h *host) submit(task peer.Task) { h.tasks <- task }

func (h *host) runEffects(effects []peer.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case peer.EffectSend:
			if err := h.conn.Send(e.Lane, e.Bytes); err != nil {
				h.log.Warn("send failed", zap.String("lane", e.Lane.Addr), zap.Error(err))
			}
		case peer.EffectWait:
			h.arm(e.Wire, e.When)
		case peer.EffectRest:
			h.rest(e.Wire)
		case peer.EffectGive:
			h.give(e)
		case peer.EffectLog:
			h.log.Debug(e.Text)
		}
	}
}

// give delivers a local-caller effect. Without a subsystem router to
// hand it to (out of scope, same as the PKI oracle), the host logs it;
// a real deployment would wire Duct back to whatever local subsystem
// owns it.
func (h *host) give(e peer.Effect) {
	switch e.Give {
	case peer.GiveDone:
		h.log.Info("message done", zap.String("duct", string(e.Duct)), zap.Uint32("message_num", e.MessageNum), zap.String("err", e.Err))
	case peer.GiveBoon:
		h.log.Info("boon delivered", zap.String("duct", string(e.Duct)), zap.Int("bytes", len(e.Payload)))
	case peer.GiveLost:
		h.log.Warn("message lost", zap.String("duct", string(e.Duct)))
	case peer.GiveClog:
		h.log.Warn("peer clogged", zap.String("ship", e.ClogShip.String()))
	case peer.GiveTurf:
		h.log.Info("turf changed", zap.String("ship", e.ClogShip.String()))
	}
}

// arm (re)schedules wire's timer to fire at when, replacing whatever
// was previously armed for the same wire.
func (h *host) arm(wire peer.TimerWire, when time.Time) {
	if t, ok := h.timers[wire]; ok {
		t.Stop()
	}
	d := time.Until(when)
	if d < 0 {
		d = 0
	}
	h.timers[wire] = time.AfterFunc(d, func() {
		h.submit(peer.Task{Kind: peer.TaskWake, Now: time.Now(), WakeShip: wire.Ship, WakeBone: wire.Bone})
	})
}

func (h *host) rest(wire peer.TimerWire) {
	if t, ok := h.timers[wire]; ok {
		t.Stop()
		delete(h.timers, wire)
	}
}

// recvLoop turns inbound datagrams into TaskHear tasks until ctx is
// cancelled.
func (h *host) recvLoop(ctx context.Context) {
	for {
		lane, blob, err := h.conn.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn("recv failed", zap.Error(err))
			continue
		}
		h.submit(peer.Task{Kind: peer.TaskHear, Now: time.Now(), Lane: lane, Blob: blob})
	}
}

// tickLoop periodically submits TaskTick so every known peer's 30s
// dead-after-last-contact timeout (§4.5) gets checked even though
// nothing in the wire protocol itself ever tells us a peer went quiet.
func (h *host) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.submit(peer.Task{Kind: peer.TaskTick, Now: now})
		}
	}
}

// snapshotLoop periodically persists continuity state for every known
// peer and records link-quality stats, until ctx is cancelled.
func (h *host) snapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.snapshot(now)
		}
	}
}

func (h *host) snapshot(now time.Time) {
	h.coreMu.Lock()
	defer h.coreMu.Unlock()
	for who, p := range h.transport.Peers {
		if !p.Known {
			continue
		}
		snap := persist.Snapshot{
			Ship:         who,
			Known:        p.Known,
			Life:         p.Life,
			Rift:         p.Rift,
			PublicKey:    p.PublicKey,
			SymmetricKey: p.SymmetricKey,
			HasSponsor:   p.HasSponsor,
			Sponsor:      p.Sponsor,
			LastContact:  p.LastContact,
		}
		if err := h.store.Put(snap); err != nil {
			h.log.Warn("snapshot failed", zap.String("ship", who.String()), zap.Error(err))
			continue
		}
		for _, snd := range p.Flows.Snd {
			h.stats.Observe(who, now, snd.Congestion)
		}
	}
}
