package rangeloop

import (
	"testing"
	"time"

	"rangewatch-go/bus"
	"rangewatch-go/drivers/hcsr04"
	"rangewatch-go/types"
)

type fakeRanger struct {
	cm  float64
	err error
}

func (f *fakeRanger) Measure() (hcsr04.Measurement, error) {
	if f.err != nil {
		return hcsr04.Measurement{}, f.err
	}
	return hcsr04.Measurement{
		Centimeters: f.cm,
		Pulse:       time.Duration(f.cm/hcsr04.SpeedOfSoundCmPerUS*2) * time.Microsecond,
	}, nil
}

func newTestService(r Ranger) (*Service, *bus.Bus) {
	b := bus.NewBus(16)
	return New(b.NewConnection("rangeloop"), r, Config{}), b
}

func recvMsg(t *testing.T, sub *bus.Subscription) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectNoMessage(t *testing.T, sub *bus.Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected message on %v: %+v", m.Topic, m.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPolicyTable(t *testing.T) {
	s, _ := newTestService(nil)

	cases := []struct {
		cm        float64
		indicator bool
		alarm     bool
		near      bool
	}{
		{60, false, false, false},
		{40, true, false, false},
		{10, true, true, true},
		// Exact thresholds select the near action.
		{50, true, false, false},
		{35, true, true, false},
		{20, true, true, true},
	}
	for _, c := range cases {
		p := s.planFor(c.cm)
		if p.IndicatorOn != c.indicator {
			t.Errorf("cm=%v: indicator=%v, want %v", c.cm, p.IndicatorOn, c.indicator)
		}
		if (p.AlarmLevel != 0) != c.alarm {
			t.Errorf("cm=%v: alarm level=%d, want active=%v", c.cm, p.AlarmLevel, c.alarm)
		}
		if p.Near != c.near {
			t.Errorf("cm=%v: near=%v, want %v", c.cm, p.Near, c.near)
		}
	}
}

func TestAlarmDutyIsHalfScale(t *testing.T) {
	s, _ := newTestService(nil)
	if p := s.planFor(10); p.AlarmLevel != 0x8000 {
		t.Fatalf("expected half-scale duty, got %#x", p.AlarmLevel)
	}
}

func TestDisplayTextFormat(t *testing.T) {
	s, _ := newTestService(nil)
	if p := s.planFor(34.3); p.Text != "Distance: 34.30" {
		t.Fatalf("unexpected display text %q", p.Text)
	}
}

func TestDeterminism(t *testing.T) {
	s, _ := newTestService(nil)
	first := s.planFor(27.5)
	for i := 0; i < 10; i++ {
		if got := s.planFor(27.5); got != first {
			t.Fatalf("cycle %d: plan %+v differs from %+v", i, got, first)
		}
	}
}

func TestCycleDispatchesCommands(t *testing.T) {
	r := &fakeRanger{cm: 10}
	s, b := newTestService(r)

	conn := b.NewConnection("watch")
	defer conn.Disconnect()
	ctrl := conn.Subscribe(bus.T("hal", "cap", bus.WildcardOne, bus.WildcardOne, "control", bus.WildcardOne))
	defer conn.Unsubscribe(ctrl)
	val := conn.Subscribe(bus.T("range", "value"))
	defer conn.Unsubscribe(val)

	s.cycle()

	m := recvMsg(t, val)
	dv, ok := m.Payload.(types.DistanceValue)
	if !ok || dv.Centimeters != 10 {
		t.Fatalf("unexpected distance value %+v", m.Payload)
	}

	// Indicator, alarm, two servos, display.
	got := map[string]any{}
	for i := 0; i < 5; i++ {
		m := recvMsg(t, ctrl)
		name, _ := m.Topic.At(3).(string)
		got[name] = m.Payload
	}

	if v, ok := got["indicator"].(types.LEDSet); !ok || !v.On {
		t.Fatalf("indicator: want on, got %+v", got["indicator"])
	}
	if v, ok := got["alarm"].(types.PWMSet); !ok || v.Level == 0 {
		t.Fatalf("alarm: want active, got %+v", got["alarm"])
	}
	if v, ok := got["servo-a"].(types.ServoMove); !ok || !v.Near {
		t.Fatalf("servo-a: want near, got %+v", got["servo-a"])
	}
	if v, ok := got["servo-b"].(types.ServoMove); !ok || !v.Near {
		t.Fatalf("servo-b: want near, got %+v", got["servo-b"])
	}
	if v, ok := got["display"].(types.DisplayShow); !ok || v.Text != "Distance: 10.00" {
		t.Fatalf("display: got %+v", got["display"])
	}
}

func TestFailedCycleSkipsActuation(t *testing.T) {
	r := &fakeRanger{err: hcsr04.ErrNoEcho}
	s, b := newTestService(r)

	conn := b.NewConnection("watch")
	defer conn.Disconnect()
	ctrl := conn.Subscribe(bus.T("hal", "cap", bus.WildcardOne, bus.WildcardOne, "control", bus.WildcardOne))
	defer conn.Unsubscribe(ctrl)
	logSub := conn.Subscribe(bus.T("log", "error", "rangeloop"))
	defer conn.Unsubscribe(logSub)

	s.cycle()

	// The failure is logged, and no actuator command goes out.
	recvMsg(t, logSub)
	expectNoMessage(t, ctrl)
}

func TestFailureLeavesPriorStateUntouched(t *testing.T) {
	r := &fakeRanger{cm: 10}
	s, b := newTestService(r)

	conn := b.NewConnection("watch")
	defer conn.Disconnect()
	ctrl := conn.Subscribe(bus.T("hal", "cap", bus.WildcardOne, bus.WildcardOne, "control", bus.WildcardOne))
	defer conn.Unsubscribe(ctrl)

	s.cycle()
	for i := 0; i < 5; i++ {
		recvMsg(t, ctrl)
	}

	r.err = hcsr04.ErrEchoTimeout
	s.cycle()
	expectNoMessage(t, ctrl)
}
