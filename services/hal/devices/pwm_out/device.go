package pwm_out

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
	"rangewatch-go/x/strx"
	"rangewatch-go/x/timex"
)

type Params struct {
	Pin    int
	FreqHz uint64 // signal frequency
	Top    uint16 // logical resolution; level 0..Top
	Name   string
}

// Device is a duty-cycle signal generator: the audible alarm. Level 0 is
// silent; any non-zero level is audible at that duty.
type Device struct {
	id   string
	pin  int
	pwm  hal.PWMHandle
	freq uint64
	top  uint16
	pub  hal.EventEmitter
	reg  hal.ResourceRegistry
	addr hal.CapAddr
}

func New(id string, p Params, h hal.PWMHandle, res hal.Resources) *Device {
	name := strx.Coalesce(p.Name, id)
	if p.Top == 0 {
		p.Top = 0xFFFF
	}
	if p.FreqHz == 0 {
		p.FreqHz = 2000
	}
	return &Device{
		id:   id,
		pin:  p.Pin,
		pwm:  h,
		freq: p.FreqHz,
		top:  p.Top,
		pub:  res.Pub,
		reg:  res.Reg,
		addr: hal.CapAddr{Kind: string(types.KindPWM), Name: name},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []hal.CapabilitySpec {
	return []hal.CapabilitySpec{{
		Kind: types.KindPWM,
		Name: d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "pwm_out",
			Detail:        types.PWMInfo{Pin: d.pin, FreqHz: d.freq, Top: d.top},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.pwm.Configure(d.freq, d.top); err != nil {
		return err
	}
	d.pwm.Set(0) // start silent
	d.emitValue(0)
	return nil
}

func (d *Device) Close() error {
	d.pwm.Set(0)
	if d.reg != nil {
		d.reg.ReleasePWM(d.id, d.pin)
	}
	return nil
}

func (d *Device) Control(_ hal.CapAddr, verb string, payload any) (hal.ControlResult, error) {
	switch verb {
	case "set":
		p, ok := payload.(types.PWMSet)
		if !ok {
			return hal.ControlResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		level := p.Level
		if level > d.top {
			level = d.top
		}
		d.pwm.Set(level)
		d.emitValue(level)
		return hal.ControlResult{OK: true}, nil
	default:
		return hal.ControlResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) emitValue(level uint16) {
	_ = d.pub.Emit(hal.Event{
		Addr:    d.addr,
		Payload: types.PWMValue{Level: level},
		TSms:    timex.NowMs(),
	})
}
