package hcsr04

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeSensor emulates the electrical behaviour of the module: after the
// trigger burst ends, the echo line rises after echoDelay and stays high for
// pulse. pulse < 0 models a stuck line; echoDelay < 0 models no echo at all.
type fakeSensor struct {
	mu        sync.Mutex
	echoDelay time.Duration
	pulse     time.Duration
	firedAt   time.Time
}

func (s *fakeSensor) fire() {
	s.mu.Lock()
	s.firedAt = time.Now()
	s.mu.Unlock()
}

func (s *fakeSensor) echoLevel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firedAt.IsZero() || s.echoDelay < 0 {
		return false
	}
	el := time.Since(s.firedAt)
	if el < s.echoDelay {
		return false
	}
	if s.pulse < 0 {
		return true // stuck high
	}
	return el < s.echoDelay+s.pulse
}

type fakeTrigger struct {
	s     *fakeSensor
	level bool
	fail  bool
}

func (p *fakeTrigger) ConfigureInput() error { return nil }
func (p *fakeTrigger) ConfigureOutput(initial bool) error {
	if p.fail {
		return errors.New("bad pin")
	}
	p.level = initial
	return nil
}
func (p *fakeTrigger) Set(level bool) {
	if p.level && !level {
		p.s.fire() // burst launched on the falling edge
	}
	p.level = level
}
func (p *fakeTrigger) Get() bool { return p.level }

type fakeEcho struct {
	s    *fakeSensor
	fail bool
}

func (p *fakeEcho) ConfigureInput() error {
	if p.fail {
		return errors.New("bad pin")
	}
	return nil
}
func (p *fakeEcho) ConfigureOutput(bool) error { return nil }
func (p *fakeEcho) Set(bool)                   {}
func (p *fakeEcho) Get() bool                  { return p.s.echoLevel() }

func newFakes(echoDelay, pulse time.Duration) (*fakeTrigger, *fakeEcho) {
	s := &fakeSensor{echoDelay: echoDelay, pulse: pulse}
	return &fakeTrigger{s: s}, &fakeEcho{s: s}
}

func TestDistanceFromPulse(t *testing.T) {
	// Conversion must track (0.0343 * us) / 2 within 0.5% across the
	// valid pulse-width range.
	for us := int64(100); us <= 23000; us += 700 {
		pulse := time.Duration(us) * time.Microsecond
		want := SpeedOfSoundCmPerUS * float64(us) / 2
		got := DistanceFromPulse(pulse)
		if math.Abs(got-want) > want*0.005 {
			t.Fatalf("pulse %dus: got %.4f want %.4f", us, got, want)
		}
	}
}

func TestMeasure_Success(t *testing.T) {
	// 2ms echo pulse => ~34.3cm.
	trig, echo := newFakes(300*time.Microsecond, 2*time.Millisecond)
	d, err := New(trig, echo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m, err := d.Measure()
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want := 34.3
	if math.Abs(m.Centimeters-want) > want*0.10 {
		t.Fatalf("distance %.2fcm, want ~%.1fcm", m.Centimeters, want)
	}
	if in := m.Inches(); math.Abs(in-m.Centimeters/2.54) > 1e-9 {
		t.Fatalf("inches view %.4f inconsistent", in)
	}
}

func TestMeasure_NoEcho(t *testing.T) {
	trig, echo := newFakes(-1, 0)
	d, err := New(trig, echo, Config{StartupTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t0 := time.Now()
	_, err = d.Measure()
	elapsed := time.Since(t0)

	if !errors.Is(err, ErrNoEcho) {
		t.Fatalf("expected ErrNoEcho, got %v", err)
	}
	// Must not block past the timeout bound (generous margin for CI).
	if elapsed > 100*time.Millisecond {
		t.Fatalf("measure blocked %v past a 10ms startup timeout", elapsed)
	}
}

func TestMeasure_EchoTimeout(t *testing.T) {
	// Echo rises but never falls: stuck/disconnected sensor.
	trig, echo := newFakes(200*time.Microsecond, -1)
	d, err := New(trig, echo, Config{EchoTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t0 := time.Now()
	_, err = d.Measure()
	elapsed := time.Since(t0)

	if !errors.Is(err, ErrEchoTimeout) {
		t.Fatalf("expected ErrEchoTimeout, got %v", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("measure blocked %v past a 10ms echo timeout", elapsed)
	}
}

func TestMeasure_InvalidReading(t *testing.T) {
	// A 25ms pulse converts to ~429cm, beyond the rated 400cm range.
	trig, echo := newFakes(200*time.Microsecond, 25*time.Millisecond)
	d, err := New(trig, echo, Config{EchoTimeout: 40 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Measure(); !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("expected ErrInvalidReading, got %v", err)
	}
}

func TestNew_InitFailure(t *testing.T) {
	s := &fakeSensor{}
	if _, err := New(&fakeTrigger{s: s, fail: true}, &fakeEcho{s: s}); !errors.Is(err, ErrInitFailure) {
		t.Fatalf("expected ErrInitFailure for trigger, got %v", err)
	}
	if _, err := New(&fakeTrigger{s: s}, &fakeEcho{s: s, fail: true}); !errors.Is(err, ErrInitFailure) {
		t.Fatalf("expected ErrInitFailure for echo, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	trig, echo := newFakes(100*time.Microsecond, time.Millisecond)
	d, err := New(trig, echo, Config{TriggerPulse: time.Microsecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Sub-minimum trigger pulses are coerced to the 10µs the sensor needs.
	if d.cfg.TriggerPulse < 10*time.Microsecond {
		t.Fatalf("trigger pulse %v below sensor minimum", d.cfg.TriggerPulse)
	}
	if d.cfg.MaxRangeCM != 400 {
		t.Fatalf("default max range = %v", d.cfg.MaxRangeCM)
	}
}
