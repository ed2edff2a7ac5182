package gpio_dout

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
	"rangewatch-go/x/strx"
	"rangewatch-go/x/timex"
)

type Params struct {
	Pin       int
	ActiveLow bool
	Initial   bool
	Name      string
}

// Device is a binary digital output: the assert/deassert indicator light.
type Device struct {
	id        string
	pin       hal.GPIOHandle
	activeLow bool
	initial   bool
	pub       hal.EventEmitter
	reg       hal.ResourceRegistry
	addr      hal.CapAddr
}

func New(id string, p Params, h hal.GPIOHandle, res hal.Resources) *Device {
	name := strx.Coalesce(p.Name, id)
	return &Device{
		id:        id,
		pin:       h,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		pub:       res.Pub,
		reg:       res.Reg,
		addr:      hal.CapAddr{Kind: string(types.KindLED), Name: name},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []hal.CapabilitySpec {
	return []hal.CapabilitySpec{{
		Kind: types.KindLED,
		Name: d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_dout",
			Detail:        types.LEDInfo{Pin: d.pin.Number()},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	level := d.initial
	if d.activeLow {
		level = !level
	}
	if err := d.pin.ConfigureOutput(level); err != nil {
		return err
	}
	d.emitValue()
	return nil
}

func (d *Device) Close() error {
	if d.reg != nil {
		d.reg.ReleaseGPIO(d.id, d.pin.Number())
	}
	return nil
}

func (d *Device) Control(_ hal.CapAddr, verb string, payload any) (hal.ControlResult, error) {
	switch verb {
	case "set":
		p, ok := payload.(types.LEDSet)
		if !ok {
			return hal.ControlResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		d.setLogical(p.On)
		d.emitValue()
		return hal.ControlResult{OK: true}, nil
	case "toggle":
		d.setLogical(!d.getLogical())
		d.emitValue()
		return hal.ControlResult{OK: true}, nil
	case "read":
		d.emitValue()
		return hal.ControlResult{OK: true}, nil
	default:
		return hal.ControlResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) setLogical(on bool) {
	level := on
	if d.activeLow {
		level = !level
	}
	d.pin.Set(level)
}

func (d *Device) getLogical() bool {
	level := d.pin.Get()
	if d.activeLow {
		level = !level
	}
	return level
}

func (d *Device) emitValue() {
	_ = d.pub.Emit(hal.Event{
		Addr:    d.addr,
		Payload: types.LEDValue{On: d.getLogical()},
		TSms:    timex.NowMs(),
	})
}
