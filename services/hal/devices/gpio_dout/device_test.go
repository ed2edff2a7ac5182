package gpio_dout

import (
	"context"
	"testing"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
)

type capture struct{ events []hal.Event }

func (c *capture) Emit(ev hal.Event) bool {
	c.events = append(c.events, ev)
	return true
}

func newTestDevice(t *testing.T, p Params) (*Device, *hal.FakePin, *capture) {
	t.Helper()
	reg := hal.NewHostRegistry()
	h, err := reg.ClaimGPIO("dev", p.Pin)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	cap := &capture{}
	d := New("dev", p, h, hal.Resources{Reg: reg, Pub: cap})
	return d, reg.Pin(p.Pin), cap
}

func TestInitDrivesInitialLevel(t *testing.T) {
	d, pin, _ := newTestDevice(t, Params{Pin: 2, Initial: false})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if pin.Get() {
		t.Fatal("expected pin low after init")
	}
}

func TestActiveLowInverts(t *testing.T) {
	d, pin, _ := newTestDevice(t, Params{Pin: 2, ActiveLow: true})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !pin.Get() {
		t.Fatal("active-low off should drive the pin high")
	}

	res, err := d.Control(hal.CapAddr{}, "set", types.LEDSet{On: true})
	if err != nil || !res.OK {
		t.Fatalf("set: res=%+v err=%v", res, err)
	}
	if pin.Get() {
		t.Fatal("active-low on should drive the pin low")
	}
}

func TestSetAndToggle(t *testing.T) {
	d, pin, cap := newTestDevice(t, Params{Pin: 4})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	if res, _ := d.Control(hal.CapAddr{}, "set", types.LEDSet{On: true}); !res.OK {
		t.Fatalf("set failed: %+v", res)
	}
	if !pin.Get() {
		t.Fatal("expected pin high after set on")
	}

	if res, _ := d.Control(hal.CapAddr{}, "toggle", nil); !res.OK {
		t.Fatalf("toggle failed: %+v", res)
	}
	if pin.Get() {
		t.Fatal("expected pin low after toggle")
	}

	last := cap.events[len(cap.events)-1]
	v, ok := last.Payload.(types.LEDValue)
	if !ok {
		t.Fatalf("unexpected payload %T", last.Payload)
	}
	if v.On {
		t.Fatal("last emitted value should be off")
	}
}

func TestBadPayloadAndVerb(t *testing.T) {
	d, _, _ := newTestDevice(t, Params{Pin: 5})
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	res, _ := d.Control(hal.CapAddr{}, "set", "not-a-struct")
	if res.OK || res.Error != errcode.InvalidPayload {
		t.Fatalf("want InvalidPayload, got %+v", res)
	}
	res, _ = d.Control(hal.CapAddr{}, "blink", nil)
	if res.OK || res.Error != errcode.Unsupported {
		t.Fatalf("want Unsupported, got %+v", res)
	}
}

func TestCloseReleasesPin(t *testing.T) {
	reg := hal.NewHostRegistry()
	h, err := reg.ClaimGPIO("a", 7)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	d := New("a", Params{Pin: 7}, h, hal.Resources{Reg: reg, Pub: &capture{}})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := reg.ClaimGPIO("b", 7); err != nil {
		t.Fatalf("pin should be claimable after close, got %v", err)
	}
}
