package char_display

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/services/hal"
)

func init() { hal.RegisterBuilder("char_display", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in hal.BuilderInput) (hal.Device, error) {
	p, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	if p.Display == nil {
		return nil, errcode.InvalidParams
	}
	return New(in.ID, p, in.Res), nil
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
