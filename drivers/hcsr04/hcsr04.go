// Package hcsr04 provides a driver for the HC-SR04 ultrasonic ranging module.
// It owns one trigger output line and one echo input line and exposes a single
// operation:
//
//	m, err := d.Measure()   // one complete trigger/echo cycle
//
// A call is one self-contained attempt: it fires a trigger burst, waits for
// the echo pulse with two distinct bounded timeouts, and converts the pulse
// width to a distance. Retry policy belongs to the caller.
//
// Pulse timing uses deadline-checked polling against the monotonic clock
// rather than coarse scheduler delays; the echo-wait phases never exceed
// their configured bounds, so the driver cannot starve a cooperative
// scheduler even with the sensor disconnected.
package hcsr04

import (
	"errors"
	"runtime"
	"time"
)

// SpeedOfSoundCmPerUS is the standard approximation of sound speed in air
// at room temperature. No temperature compensation is attempted.
const SpeedOfSoundCmPerUS = 0.0343

// Errors returned by the driver.
var (
	// ErrInitFailure is the only construction error: a line could not be
	// configured in its required direction.
	ErrInitFailure = errors.New("hcsr04: init failure")

	// ErrNoEcho means the echo line never rose within the startup window:
	// nothing in range, or a wiring/sensor fault. Not fatal.
	ErrNoEcho = errors.New("hcsr04: no echo")

	// ErrEchoTimeout means the echo pulse outlasted the maximum width for
	// the sensor's rated range: the line is stuck or the sensor misbehaves.
	ErrEchoTimeout = errors.New("hcsr04: echo timeout")

	// ErrInvalidReading rejects physically implausible results.
	ErrInvalidReading = errors.New("hcsr04: invalid reading")
)

// DigitalPin is the narrow GPIO contract the driver needs. HAL pin handles
// and test fakes satisfy it structurally.
type DigitalPin interface {
	ConfigureInput() error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Config controls protocol timing. All fields are optional.
type Config struct {
	// TriggerPulse is the width of the trigger burst. The sensor needs at
	// least 10µs to fire its internal burst; shorter values are coerced up.
	TriggerPulse time.Duration
	// StartupTimeout bounds the wait for the echo rising edge. Default 25ms.
	StartupTimeout time.Duration
	// EchoTimeout bounds the echo pulse width. The default 30ms covers the
	// round trip at the rated 4m range with margin.
	EchoTimeout time.Duration
	// MaxRangeCM rejects readings beyond the sensor's rated range.
	// Default 400.
	MaxRangeCM float64
}

// Measurement is the result of one successful ranging cycle. It exists only
// on success; failures are reported as errors, never as sentinel distances.
type Measurement struct {
	Centimeters float64
	Pulse       time.Duration // raw echo pulse width
}

// Inches is a derived view; Centimeters is the canonical unit.
func (m Measurement) Inches() float64 { return m.Centimeters / 2.54 }

// Device drives one HC-SR04 through a trigger and an echo line, which it
// owns exclusively for its lifetime.
type Device struct {
	trigger DigitalPin
	echo    DigitalPin
	cfg     Config
}

// New claims both lines and configures their directions: trigger as output
// held low, echo as input. Any configuration failure is ErrInitFailure.
func New(trigger, echo DigitalPin, cfgs ...Config) (*Device, error) {
	cfg := Config{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.TriggerPulse < 10*time.Microsecond {
		cfg.TriggerPulse = 10 * time.Microsecond
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 25 * time.Millisecond
	}
	if cfg.EchoTimeout <= 0 {
		cfg.EchoTimeout = 30 * time.Millisecond
	}
	if cfg.MaxRangeCM <= 0 {
		cfg.MaxRangeCM = 400
	}

	if err := trigger.ConfigureOutput(false); err != nil {
		return nil, ErrInitFailure
	}
	if err := echo.ConfigureInput(); err != nil {
		return nil, ErrInitFailure
	}
	return &Device{trigger: trigger, echo: echo, cfg: cfg}, nil
}

// Measure executes one trigger/echo cycle and returns the distance, or one
// of ErrNoEcho / ErrEchoTimeout / ErrInvalidReading. Every wait is bounded;
// the call completes within StartupTimeout+EchoTimeout plus the trigger
// pulse in the worst case.
func (d *Device) Measure() (Measurement, error) {
	// Settle the trigger low, then fire the burst. The pulse is held by a
	// tight deadline-checked spin: a scheduler delay here would stretch the
	// 10µs pulse by orders of magnitude.
	d.trigger.Set(false)
	spinFor(2 * time.Microsecond)
	d.trigger.Set(true)
	spinFor(d.cfg.TriggerPulse)
	d.trigger.Set(false)

	// Echo start: low→high within the startup window. This phase may wait
	// tens of milliseconds, so yield to the scheduler between polls.
	deadline := time.Now().Add(d.cfg.StartupTimeout)
	for !d.echo.Get() {
		if time.Now().After(deadline) {
			return Measurement{}, ErrNoEcho
		}
		runtime.Gosched()
	}
	start := time.Now()

	// Echo end: high→low within the maximum pulse width. Poll tight; this
	// edge carries the measurement.
	deadline = start.Add(d.cfg.EchoTimeout)
	for d.echo.Get() {
		if time.Now().After(deadline) {
			return Measurement{}, ErrEchoTimeout
		}
	}
	pulse := time.Since(start)

	cm := DistanceFromPulse(pulse)
	if cm <= 0 || cm > d.cfg.MaxRangeCM {
		return Measurement{}, ErrInvalidReading
	}
	return Measurement{Centimeters: cm, Pulse: pulse}, nil
}

// DistanceFromPulse converts an echo pulse width to centimeters: half the
// round trip at the speed of sound.
func DistanceFromPulse(pulse time.Duration) float64 {
	us := float64(pulse) / float64(time.Microsecond)
	return SpeedOfSoundCmPerUS * us / 2
}

// spinFor busy-waits for d, bounded by the monotonic clock rather than
// trusting loop iteration counts.
func spinFor(d time.Duration) {
	t0 := time.Now()
	for time.Since(t0) < d {
	}
}
