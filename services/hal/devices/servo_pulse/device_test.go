package servo_pulse

import (
	"context"
	"testing"
	"time"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
)

type capture struct{ events []hal.Event }

func (c *capture) Emit(ev hal.Event) bool {
	c.events = append(c.events, ev)
	return true
}

func newTestDevice(t *testing.T, p Params) (*Device, *hal.FakePin, *capture, *[]time.Duration) {
	t.Helper()
	reg := hal.NewHostRegistry()
	h, err := reg.ClaimGPIO("dev", p.Pin)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	cap := &capture{}
	d := New("dev", p, h, hal.Resources{Reg: reg, Pub: cap})
	sleeps := &[]time.Duration{}
	d.sleep = func(dur time.Duration) { *sleeps = append(*sleeps, dur) }
	return d, reg.Pin(p.Pin), cap, sleeps
}

func TestMoveNearPulseSequence(t *testing.T) {
	d, pin, cap, sleeps := newTestDevice(t, Params{Pin: 4, NearPulseMS: 2, FarPulseMS: 1})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	res, err := d.Control(hal.CapAddr{}, "move", types.ServoMove{Near: true})
	if err != nil || !res.OK {
		t.Fatalf("move: res=%+v err=%v", res, err)
	}

	// High then low, ending deasserted.
	want := []bool{true, false}
	if len(pin.Sets) != len(want) {
		t.Fatalf("expected %d pin writes, got %v", len(want), pin.Sets)
	}
	for i, lv := range want {
		if pin.Sets[i] != lv {
			t.Fatalf("write %d: want %v, got %v", i, lv, pin.Sets[i])
		}
	}

	// Pulse width then settle.
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 delays, got %v", *sleeps)
	}
	if (*sleeps)[0] != 2*time.Millisecond {
		t.Fatalf("near pulse: want 2ms, got %v", (*sleeps)[0])
	}
	if (*sleeps)[1] != 10*time.Millisecond {
		t.Fatalf("settle: want 10ms, got %v", (*sleeps)[1])
	}

	v, ok := cap.events[len(cap.events)-1].Payload.(types.ServoValue)
	if !ok || !v.Near {
		t.Fatalf("expected ServoValue{Near:true}, got %+v", cap.events[len(cap.events)-1].Payload)
	}
}

func TestMoveFarUsesFarWidth(t *testing.T) {
	d, _, _, sleeps := newTestDevice(t, Params{Pin: 6, NearPulseMS: 1, FarPulseMS: 2})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if res, _ := d.Control(hal.CapAddr{}, "move", types.ServoMove{Near: false}); !res.OK {
		t.Fatalf("move failed: %+v", res)
	}
	if (*sleeps)[0] != 2*time.Millisecond {
		t.Fatalf("far pulse: want 2ms, got %v", (*sleeps)[0])
	}
}

func TestDefaults(t *testing.T) {
	d, _, _, _ := newTestDevice(t, Params{Pin: 4})
	if d.near != 2*time.Millisecond || d.far != time.Millisecond || d.settle != 10*time.Millisecond {
		t.Fatalf("unexpected defaults: near=%v far=%v settle=%v", d.near, d.far, d.settle)
	}
}

func TestBadPayloadAndVerb(t *testing.T) {
	d, _, _, _ := newTestDevice(t, Params{Pin: 4})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	res, _ := d.Control(hal.CapAddr{}, "move", 3.14)
	if res.OK || res.Error != errcode.InvalidPayload {
		t.Fatalf("want InvalidPayload, got %+v", res)
	}
	res, _ = d.Control(hal.CapAddr{}, "sweep", nil)
	if res.OK || res.Error != errcode.Unsupported {
		t.Fatalf("want Unsupported, got %+v", res)
	}
}
