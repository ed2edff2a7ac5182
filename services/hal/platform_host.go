// services/hal/platform_host.go
//go:build !rp2040 && !rp2350

package hal

import (
	"sync"

	"rangewatch-go/errcode"
)

// Host-side fakes. DefaultRegistry hands these out so the whole module,
// including cmd binaries, builds and runs off-target.

// FakePin implements GPIOHandle for host-side tests.
type FakePin struct {
	mu      sync.Mutex
	number  int
	level   bool
	modeOut bool
	// Sets records every output level written, for assertions.
	Sets []bool
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) ConfigureInput(Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modeOut = false
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modeOut = true
	p.level = initial
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.Sets = append(p.Sets, level)
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = !p.level
	p.Sets = append(p.Sets, p.level)
}

// SetInput drives the simulated input level from a test.
func (p *FakePin) SetInput(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

// FakePWM implements PWMHandle for host-side tests.
type FakePWM struct {
	mu     sync.Mutex
	freqHz uint64
	top    uint16
	level  uint16
	// Levels records every duty level written.
	Levels []uint16
}

func (p *FakePWM) Configure(freqHz uint64, top uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if top == 0 {
		top = 1
	}
	p.freqHz = freqHz
	p.top = top
	return nil
}

func (p *FakePWM) Set(level uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level > p.top {
		level = p.top
	}
	p.level = level
	p.Levels = append(p.Levels, level)
}

func (p *FakePWM) Top() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

func (p *FakePWM) Level() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// FakeDisplay implements TextDisplay, capturing the rendered text.
type FakeDisplay struct {
	mu      sync.Mutex
	cleared int
	col     uint8
	row     uint8
	text    string
}

func (d *FakeDisplay) ClearDisplay() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
	d.text = ""
	return nil
}

func (d *FakeDisplay) SetCursor(col, row uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.col, d.row = col, row
	return nil
}

func (d *FakeDisplay) Print(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text += string(data)
	return nil
}

func (d *FakeDisplay) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *FakeDisplay) Cleared() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared
}

// ---- Host registry ----

type hostRegistry struct {
	mu     sync.Mutex
	owners map[int]string
	pins   map[int]*FakePin
	pwms   map[int]*FakePWM
}

// DefaultRegistry returns a registry of fakes mirroring the board's pin
// numbering (GP0..GP28).
func DefaultRegistry() ResourceRegistry { return NewHostRegistry() }

// NewHostRegistry is exported for tests that need direct access to the fakes.
func NewHostRegistry() *HostRegistry {
	return &HostRegistry{inner: hostRegistry{
		owners: map[int]string{},
		pins:   map[int]*FakePin{},
		pwms:   map[int]*FakePWM{},
	}}
}

type HostRegistry struct {
	inner hostRegistry
}

func (r *HostRegistry) claim(devID string, pin int) error {
	if pin < 0 || pin > 28 {
		return errcode.UnknownPin
	}
	if owner, inUse := r.inner.owners[pin]; inUse && owner != devID {
		return errcode.PinInUse
	}
	r.inner.owners[pin] = devID
	return nil
}

func (r *HostRegistry) ClaimGPIO(devID string, pin int) (GPIOHandle, error) {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	if err := r.claim(devID, pin); err != nil {
		return nil, err
	}
	p, ok := r.inner.pins[pin]
	if !ok {
		p = &FakePin{number: pin}
		r.inner.pins[pin] = p
	}
	return p, nil
}

func (r *HostRegistry) ReleaseGPIO(devID string, pin int) {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	if r.inner.owners[pin] == devID {
		delete(r.inner.owners, pin)
	}
}

func (r *HostRegistry) ClaimPWM(devID string, pin int) (PWMHandle, error) {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	if err := r.claim(devID, pin); err != nil {
		return nil, err
	}
	p, ok := r.inner.pwms[pin]
	if !ok {
		p = &FakePWM{}
		r.inner.pwms[pin] = p
	}
	return p, nil
}

func (r *HostRegistry) ReleasePWM(devID string, pin int) {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	if r.inner.owners[pin] == devID {
		delete(r.inner.owners, pin)
	}
}

// Pin exposes the fake behind a claimed GPIO for assertions.
func (r *HostRegistry) Pin(n int) *FakePin {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	return r.inner.pins[n]
}

// PWM exposes the fake behind a claimed PWM pin for assertions.
func (r *HostRegistry) PWM(n int) *FakePWM {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	return r.inner.pwms[n]
}

// DefaultTextDisplay returns an inert display on the host.
func DefaultTextDisplay() (TextDisplay, error) { return &FakeDisplay{}, nil }
