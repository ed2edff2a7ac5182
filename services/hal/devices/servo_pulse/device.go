package servo_pulse

import (
	"context"
	"time"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
	"rangewatch-go/x/strx"
	"rangewatch-go/x/timex"
)

type Params struct {
	Pin int
	// Pulse widths for the two positions. Two devices with complementary
	// widths realise opposing motion.
	NearPulseMS int
	FarPulseMS  int
	// SettleMS is the hold-off after each pulse. Default 10.
	SettleMS int
	Name     string
}

// Device drives a positional actuator with open-loop assert pulses: a short
// high pulse of a position-dependent width followed by a settle delay.
type Device struct {
	id     string
	pin    hal.GPIOHandle
	near   time.Duration
	far    time.Duration
	settle time.Duration
	pub    hal.EventEmitter
	reg    hal.ResourceRegistry
	addr   hal.CapAddr

	sleep func(time.Duration) // time.Sleep; swapped in tests
}

func New(id string, p Params, h hal.GPIOHandle, res hal.Resources) *Device {
	name := strx.Coalesce(p.Name, id)
	if p.NearPulseMS <= 0 {
		p.NearPulseMS = 2
	}
	if p.FarPulseMS <= 0 {
		p.FarPulseMS = 1
	}
	if p.SettleMS <= 0 {
		p.SettleMS = 10
	}
	return &Device{
		id:     id,
		pin:    h,
		near:   time.Duration(p.NearPulseMS) * time.Millisecond,
		far:    time.Duration(p.FarPulseMS) * time.Millisecond,
		settle: time.Duration(p.SettleMS) * time.Millisecond,
		pub:    res.Pub,
		reg:    res.Reg,
		addr:   hal.CapAddr{Kind: string(types.KindServo), Name: name},
		sleep:  time.Sleep,
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []hal.CapabilitySpec {
	return []hal.CapabilitySpec{{
		Kind: types.KindServo,
		Name: d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "servo_pulse",
			Detail: types.ServoInfo{
				Pin:         d.pin.Number(),
				NearPulseMS: int(d.near / time.Millisecond),
				FarPulseMS:  int(d.far / time.Millisecond),
				SettleMS:    int(d.settle / time.Millisecond),
			},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	return d.pin.ConfigureOutput(false)
}

func (d *Device) Close() error {
	d.pin.Set(false)
	if d.reg != nil {
		d.reg.ReleaseGPIO(d.id, d.pin.Number())
	}
	return nil
}

func (d *Device) Control(_ hal.CapAddr, verb string, payload any) (hal.ControlResult, error) {
	switch verb {
	case "move":
		p, ok := payload.(types.ServoMove)
		if !ok {
			return hal.ControlResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		d.drive(p.Near)
		return hal.ControlResult{OK: true}, nil
	default:
		return hal.ControlResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// drive runs one assert pulse then the settle delay. The delays are
// cooperative suspension points, not busy waits.
func (d *Device) drive(near bool) {
	width := d.far
	if near {
		width = d.near
	}
	d.pin.Set(true)
	d.sleep(width)
	d.pin.Set(false)
	d.sleep(d.settle)

	_ = d.pub.Emit(hal.Event{
		Addr:    d.addr,
		Payload: types.ServoValue{Near: near},
		TSms:    timex.NowMs(),
	})
}
