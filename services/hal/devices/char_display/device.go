package char_display

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
	"rangewatch-go/x/strx"
	"rangewatch-go/x/timex"
)

type Params struct {
	// Display is the attached driver. Required.
	Display hal.TextDisplay
	// Cols/Rows default to 16x2.
	Cols int
	Rows int
	Name string
}

// Device renders short status strings on a character display. Writes are
// fire and forget; a failed write degrades the capability but never blocks
// the caller.
type Device struct {
	id   string
	disp hal.TextDisplay
	cols int
	rows int
	pub  hal.EventEmitter
	addr hal.CapAddr
}

func New(id string, p Params, res hal.Resources) *Device {
	name := strx.Coalesce(p.Name, id)
	if p.Cols <= 0 {
		p.Cols = 16
	}
	if p.Rows <= 0 {
		p.Rows = 2
	}
	return &Device{
		id:   id,
		disp: p.Display,
		cols: p.Cols,
		rows: p.Rows,
		pub:  res.Pub,
		addr: hal.CapAddr{Kind: string(types.KindDisplay), Name: name},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []hal.CapabilitySpec {
	return []hal.CapabilitySpec{{
		Kind: types.KindDisplay,
		Name: d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "char_display",
			Detail:        types.DisplayInfo{Cols: d.cols, Rows: d.rows},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	return d.disp.ClearDisplay()
}

func (d *Device) Close() error {
	_ = d.disp.ClearDisplay()
	return nil
}

func (d *Device) Control(_ hal.CapAddr, verb string, payload any) (hal.ControlResult, error) {
	switch verb {
	case "show":
		p, ok := payload.(types.DisplayShow)
		if !ok {
			return hal.ControlResult{OK: false, Error: errcode.InvalidPayload}, nil
		}
		d.show(p.Text)
		return hal.ControlResult{OK: true}, nil
	default:
		return hal.ControlResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) show(text string) {
	if len(text) > d.cols {
		text = text[:d.cols]
	}
	if err := d.write(text); err != nil {
		_ = d.pub.Emit(hal.Event{
			Addr: d.addr,
			TSms: timex.NowMs(),
			Err:  errcode.Error,
		})
		return
	}
	_ = d.pub.Emit(hal.Event{
		Addr:    d.addr,
		Payload: types.DisplayShow{Text: text},
		TSms:    timex.NowMs(),
	})
}

func (d *Device) write(text string) error {
	if err := d.disp.ClearDisplay(); err != nil {
		return err
	}
	if err := d.disp.SetCursor(0, 0); err != nil {
		return err
	}
	return d.disp.Print([]byte(text))
}
