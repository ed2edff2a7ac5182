// services/hal/platform_rp2xxx.go
//go:build rp2040 || rp2350

package hal

import (
	"machine"
	"sync"

	"tinygo.org/x/drivers/hd44780i2c"

	"rangewatch-go/errcode"
	"rangewatch-go/x/mathx"
	"rangewatch-go/x/timex"
)

// -----------------------------------------------------------------------------
// GPIO handle
// -----------------------------------------------------------------------------

type rp2GPIO struct {
	p machine.Pin
	n int
}

func (r *rp2GPIO) Number() int { return r.n }

func (r *rp2GPIO) ConfigureInput(pull Pull) error {
	var mode machine.PinMode
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2GPIO) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2GPIO) Set(level bool) { r.p.Set(level) }
func (r *rp2GPIO) Get() bool      { return r.p.Get() }

func (r *rp2GPIO) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

// -----------------------------------------------------------------------------
// PWM handle
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// rp2PWM is a per-pin PWM view (channel level). Slice frequency is shared
// between the two channels of a slice; the registry enforces compatibility.
type rp2PWM struct {
	mu sync.Mutex

	pin   int
	ctrl  pwmCtrl
	chIdx uint8 // 0 => A, 1 => B
	slice uint8

	reqTop uint16 // logical resolution (0..reqTop)
	hwTop  uint32
	level  uint16

	reg *rp2Registry
}

func (p *rp2PWM) Configure(freqHz uint64, top uint16) error {
	freqHz = mathx.Max(freqHz, 1)
	top = mathx.Max(top, 1)

	if err := p.reg.configureSlice(p.slice, p.ctrl, freqHz); err != nil {
		return err
	}
	machine.Pin(p.pin).Configure(machine.PinConfig{Mode: machine.PinPWM})

	p.mu.Lock()
	p.reqTop = top
	p.hwTop = p.ctrl.Top()
	p.mu.Unlock()
	return nil
}

func (p *rp2PWM) Set(level uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reqTop == 0 || p.hwTop == 0 {
		return // not configured
	}
	level = mathx.Min(level, p.reqTop)
	p.level = level
	// Scale logical 0..reqTop onto the hardware wrap value.
	hw := uint32(uint64(level) * uint64(p.hwTop) / uint64(p.reqTop))
	p.ctrl.Set(p.chIdx, hw)
}

func (p *rp2PWM) Top() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqTop
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

type sliceCfg struct {
	freqHz uint64
	users  int
}

type rp2Registry struct {
	mu     sync.Mutex
	owners map[int]string
	pwms   map[int]*rp2PWM
	slices map[uint8]*sliceCfg
}

// DefaultRegistry returns the RP2 hardware registry (GP0..GP28).
func DefaultRegistry() ResourceRegistry {
	return &rp2Registry{
		owners: map[int]string{},
		pwms:   map[int]*rp2PWM{},
		slices: map[uint8]*sliceCfg{},
	}
}

func (r *rp2Registry) claim(devID string, pin int) error {
	if pin < 0 || pin > 28 {
		return errcode.UnknownPin
	}
	if owner, inUse := r.owners[pin]; inUse && owner != devID {
		return errcode.PinInUse
	}
	r.owners[pin] = devID
	return nil
}

func (r *rp2Registry) ClaimGPIO(devID string, pin int) (GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, pin); err != nil {
		return nil, err
	}
	return &rp2GPIO{p: machine.Pin(pin), n: pin}, nil
}

func (r *rp2Registry) ReleaseGPIO(devID string, pin int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[pin] == devID {
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInput})
		delete(r.owners, pin)
	}
}

func (r *rp2Registry) ClaimPWM(devID string, pin int) (PWMHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(devID, pin); err != nil {
		return nil, err
	}
	sliceNum, err := machine.PWMPeripheral(machine.Pin(pin))
	if err != nil {
		delete(r.owners, pin)
		return nil, errcode.Unsupported
	}
	p := &rp2PWM{
		pin:   pin,
		ctrl:  pwmGroupBySlice(sliceNum),
		chIdx: uint8(pin & 1), // even pin => A, odd => B
		slice: sliceNum,
		reg:   r,
	}
	r.pwms[pin] = p
	return p, nil
}

func (r *rp2Registry) ReleasePWM(devID string, pin int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[pin] != devID {
		return
	}
	if p, ok := r.pwms[pin]; ok {
		p.ctrl.Set(p.chIdx, 0)
		if sc := r.slices[p.slice]; sc != nil && sc.users > 0 {
			sc.users--
			if sc.users == 0 {
				sc.freqHz = 0
			}
		}
		delete(r.pwms, pin)
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInput})
	delete(r.owners, pin)
}

// configureSlice sets the shared slice frequency; a second user must agree.
func (r *rp2Registry) configureSlice(slice uint8, ctrl pwmCtrl, freqHz uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc := r.slices[slice]
	if sc == nil {
		sc = &sliceCfg{}
		r.slices[slice] = sc
	}
	if sc.users > 0 && sc.freqHz != freqHz {
		return errcode.Conflict
	}
	if sc.users == 0 {
		if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(freqHz)}); err != nil {
			return err
		}
		sc.freqHz = freqHz
	}
	sc.users++
	return nil
}

// -----------------------------------------------------------------------------
// Character display (LCD1602 behind a PCF8574 I²C backpack)
// -----------------------------------------------------------------------------

const displayI2CAddr = 0x27

// DefaultTextDisplay configures i2c0 on the board-default pins and returns
// the 16x2 display handle.
func DefaultTextDisplay() (TextDisplay, error) {
	if err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 100 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		return nil, err
	}
	lcd := hd44780i2c.New(machine.I2C0, displayI2CAddr)
	if err := lcd.Configure(hd44780i2c.Config{Width: 16, Height: 2}); err != nil {
		return nil, err
	}
	return &lcd, nil
}
