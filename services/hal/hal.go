// services/hal/hal.go
package hal

import (
	"context"

	"rangewatch-go/bus"
	"rangewatch-go/errcode"
	"rangewatch-go/types"
	"rangewatch-go/x/timex"
)

const eventQueueLen = 16

type capKey struct {
	kind string
	name string
}

type HAL struct {
	conn *bus.Connection
	res  Resources

	dev      map[string]Device // devID -> device
	capIndex map[capKey]string // (kind,name) -> devID

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	// Single-threaded publication of device events.
	evCh chan Event
}

func New(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[capKey]string{},
		evCh:     make(chan Event, eventQueueLen),
	}
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

// Run starts the HAL service loop; call from its own goroutine.
func Run(ctx context.Context, conn *bus.Connection, res Resources) {
	New(conn, res).Run(ctx)
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(topicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	h.pubHALState("idle", "awaiting_config")

	ready := false
	for {
		select {
		case <-ctx.Done():
			h.pubHALState("stopped", "context_cancelled")
			h.closeAll()
			return
		case msg := <-h.cfgSub.Channel():
			cfg, ok := msg.Payload.(types.HALConfig)
			if !ok {
				continue
			}
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "configured")
			}
		case msg := <-h.ctrlSub.Channel():
			if !ready {
				h.replyErr(msg, errcode.HALNotReady)
				continue
			}
			h.handleControl(msg)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

// applyConfig builds new devices and drops ones no longer configured.
// Re-applying the same config is a no-op for existing devices.
func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	seen := map[string]struct{}{}

	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		seen[dc.ID] = struct{}{}
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID)
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status.
		for _, cs := range dev.Capabilities() {
			kind := string(cs.Kind)
			name := cs.Name
			if name == "" {
				name = dev.ID()
			}
			h.capIndex[capKey{kind: kind, name: name}] = dev.ID()

			h.pubRet(capInfo(kind, name), cs.Info)
			h.pubRet(capStatus(kind, name),
				types.CapabilityStatus{Link: types.LinkUp, TSms: timex.NowMs()})
		}
	}

	// Tidy-up: remove devices not in config.
	for devID, dev := range h.dev {
		if _, ok := seen[devID]; ok {
			continue
		}
		for _, cs := range dev.Capabilities() {
			kind := string(cs.Kind)
			name := cs.Name
			if name == "" {
				name = devID
			}
			h.pubRet(capInfo(kind, name), nil)
			h.pubRet(capStatus(kind, name),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()})
			delete(h.capIndex, capKey{kind: kind, name: name})
		}
		_ = dev.Close()
		delete(h.dev, devID)
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 6 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	kind, _ := msg.Topic.At(2).(string)
	name, _ := msg.Topic.At(3).(string)
	verb, _ := msg.Topic.At(5).(string)

	devID, ok := h.capIndex[capKey{kind: kind, name: name}]
	if !ok {
		h.replyErr(msg, errcode.UnknownCap)
		return
	}
	dev := h.dev[devID]
	if dev == nil {
		h.replyErr(msg, errcode.Error)
		return
	}

	res, err := dev.Control(CapAddr{Kind: kind, Name: name}, verb, msg.Payload)
	if err != nil {
		h.replyErr(msg, errcode.Of(err))
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) handleEvent(ev Event) {
	k := ev.Addr.Kind
	n := ev.Addr.Name

	// Error → retained degraded status; no value/event published.
	if ev.Err != "" {
		h.pubRet(capStatus(k, n),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: string(ev.Err)})
		return
	}

	if ev.IsEvent {
		h.conn.Publish(h.conn.NewMessage(capEvent(k, n), ev.Payload, false))
	} else {
		h.pubRet(capValue(k, n), ev.Payload)
	}
	h.pubRet(capStatus(k, n),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms})
}

func (h *HAL) closeAll() {
	for devID, dev := range h.dev {
		_ = dev.Close()
		delete(h.dev, devID)
	}
}

// ---- replies & helpers ----

func (h *HAL) replyOK(m *bus.Message) {
	if m.CanReply() {
		h.conn.Reply(m, types.OKReply{OK: true}, false)
	}
}

func (h *HAL) replyErr(m *bus.Message, code errcode.Code) {
	if !m.CanReply() {
		return
	}
	if code == "" {
		code = errcode.Error
	}
	h.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func (h *HAL) pubRet(t bus.Topic, p any) {
	h.conn.Publish(h.conn.NewMessage(t, p, true))
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

// ---- HAL as EventEmitter (enqueue to the single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
