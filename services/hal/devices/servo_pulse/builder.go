package servo_pulse

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
)

func init() { hal.RegisterBuilder("servo_pulse", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in hal.BuilderInput) (hal.Device, error) {
	p, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	h, err := in.Res.Reg.ClaimGPIO(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	return New(in.ID, p, h, in.Res), nil
}

func parseParams(v any) (Params, error) {
	switch p := v.(type) {
	case Params:
		return p, nil
	case *Params:
		return *p, nil
	default:
		return Params{}, errcode.InvalidParams
	}
}
