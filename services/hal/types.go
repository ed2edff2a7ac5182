// services/hal/types.go
package hal

import (
	"context"

	"rangewatch-go/errcode"
	"rangewatch-go/types"
)

// ---- Capability & device model ----

// CapAddr identifies one capability on the bus.
type CapAddr struct {
	Kind string
	Name string
}

type CapabilitySpec struct {
	Kind types.Kind
	Name string // defaults to the device ID
	Info types.Info
}

// ControlResult is returned by Device.Control for non-error rejections.
type ControlResult struct {
	OK    bool
	Error errcode.Code
}

// Device is one configured peripheral. Devices must not touch the bus;
// telemetry goes through the injected EventEmitter.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (ControlResult, error)
	Close() error
}

// ---- Builders ----

type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

// ---- Hardware handles ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
}

type PWMHandle interface {
	Configure(freqHz uint64, top uint16) error
	Set(level uint16)
	Top() uint16
}

// TextDisplay is the narrow contract for a character display.
// *hd44780i2c.Device satisfies it structurally.
type TextDisplay interface {
	ClearDisplay() error
	SetCursor(col, row uint8) error
	Print(data []byte) error
}

// ---- Resource registry ----

type ResourceRegistry interface {
	ClaimGPIO(devID string, pin int) (GPIOHandle, error)
	ReleaseGPIO(devID string, pin int)
	ClaimPWM(devID string, pin int) (PWMHandle, error)
	ReleasePWM(devID string, pin int)
}

// ---- Device → HAL telemetry ----

// Event is a device's telemetry update. By default it is a value-like update
// published retained to .../value; IsEvent selects the non-retained .../event
// topic. A non-empty Err publishes only a degraded .../status.
type Event struct {
	Addr    CapAddr
	Payload any
	TSms    int64
	Err     errcode.Code
	IsEvent bool
}

// EventEmitter is provided by the HAL; devices use it to emit values/events.
// Emit must be non-blocking; false indicates a drop under pressure.
type EventEmitter interface {
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // filled in by the HAL before builders run
}
