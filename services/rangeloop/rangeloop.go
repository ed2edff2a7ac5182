// Package rangeloop is the fixed-period control loop. Each cycle it takes
// one distance measurement, evaluates three independent threshold policies
// against it, and drives the indicator, alarm, positional actuators and
// display through their capabilities. The loop is memoryless: every cycle
// re-evaluates from the fresh measurement alone.
package rangeloop

import (
	"context"
	"strconv"
	"time"

	"rangewatch-go/bus"
	"rangewatch-go/drivers/hcsr04"
	"rangewatch-go/services/diaglog"
	"rangewatch-go/services/hal"
	"rangewatch-go/types"
	"rangewatch-go/x/timex"
)

// Ranger is the one operation the loop needs from the ranging driver.
type Ranger interface {
	Measure() (hcsr04.Measurement, error)
}

// Thresholds is the static policy table. Comparison is non-strict: a
// distance exactly on a threshold selects the near action.
type Thresholds struct {
	IndicatorCM float64
	AlarmCM     float64
	ActuatorCM  float64
}

type Config struct {
	// Period between cycle starts. Default 200ms.
	Period     time.Duration
	Thresholds Thresholds

	// Capability names as configured on the HAL.
	Indicator string
	Alarm     string
	ServoA    string
	ServoB    string
	Display   string

	// AlarmLevel is the duty level driven while the alarm is active.
	// Default is half of the full 16-bit range.
	AlarmLevel uint16
}

func (c *Config) setDefaults() {
	if c.Period <= 0 {
		c.Period = 200 * time.Millisecond
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = Thresholds{IndicatorCM: 50, AlarmCM: 35, ActuatorCM: 20}
	}
	if c.Indicator == "" {
		c.Indicator = "indicator"
	}
	if c.Alarm == "" {
		c.Alarm = "alarm"
	}
	if c.ServoA == "" {
		c.ServoA = "servo-a"
	}
	if c.ServoB == "" {
		c.ServoB = "servo-b"
	}
	if c.Display == "" {
		c.Display = "display"
	}
	if c.AlarmLevel == 0 {
		c.AlarmLevel = 0x8000
	}
}

// plan is the full actuator command set for one cycle.
type plan struct {
	IndicatorOn bool
	AlarmLevel  uint16
	Near        bool
	Text        string
}

type Service struct {
	conn   *bus.Connection
	ranger Ranger
	cfg    Config
}

func New(conn *bus.Connection, ranger Ranger, cfg Config) *Service {
	cfg.setDefaults()
	return &Service{conn: conn, ranger: ranger, cfg: cfg}
}

// Run executes ranging cycles until the context is cancelled. Call from its
// own goroutine.
func Run(ctx context.Context, conn *bus.Connection, ranger Ranger, cfg Config) {
	New(conn, ranger, cfg).Run(ctx)
}

func (s *Service) Run(ctx context.Context) {
	diaglog.Info(s.conn, "rangeloop", "started")

	tick := time.NewTicker(s.cfg.Period)
	defer tick.Stop()

	for {
		s.cycle()
		select {
		case <-ctx.Done():
			diaglog.Info(s.conn, "rangeloop", "stopped")
			return
		case <-tick.C:
		}
	}
}

// cycle runs one measure-evaluate-dispatch pass. A failed measurement is
// logged and produces no actuation, leaving every actuator in its prior
// state.
func (s *Service) cycle() {
	m, err := s.ranger.Measure()
	if err != nil {
		diaglog.Error(s.conn, "rangeloop", "measure failed: "+err.Error())
		return
	}

	s.conn.Publish(s.conn.NewMessage(
		bus.T("range", "value"),
		types.DistanceValue{
			Centimeters: m.Centimeters,
			PulseUS:     m.Pulse.Microseconds(),
			TSms:        timex.NowMs(),
		},
		true,
	))

	s.dispatch(s.planFor(m.Centimeters))
}

// planFor maps one distance to the full actuator command set. Pure; each
// policy row is evaluated independently.
func (s *Service) planFor(cm float64) plan {
	p := plan{Text: "Distance: " + strconv.FormatFloat(cm, 'f', 2, 64)}
	if cm <= s.cfg.Thresholds.IndicatorCM {
		p.IndicatorOn = true
	}
	if cm <= s.cfg.Thresholds.AlarmCM {
		p.AlarmLevel = s.cfg.AlarmLevel
	}
	if cm <= s.cfg.Thresholds.ActuatorCM {
		p.Near = true
	}
	return p
}

// dispatch drives every actuator with the cycle's plan. Commands are fire
// and forget; the loop never waits on a reply.
func (s *Service) dispatch(p plan) {
	s.pub(hal.CtrlTopic(string(types.KindLED), s.cfg.Indicator, "set"),
		types.LEDSet{On: p.IndicatorOn})
	s.pub(hal.CtrlTopic(string(types.KindPWM), s.cfg.Alarm, "set"),
		types.PWMSet{Level: p.AlarmLevel})
	s.pub(hal.CtrlTopic(string(types.KindServo), s.cfg.ServoA, "move"),
		types.ServoMove{Near: p.Near})
	s.pub(hal.CtrlTopic(string(types.KindServo), s.cfg.ServoB, "move"),
		types.ServoMove{Near: p.Near})
	s.pub(hal.CtrlTopic(string(types.KindDisplay), s.cfg.Display, "show"),
		types.DisplayShow{Text: p.Text})
}

func (s *Service) pub(t bus.Topic, payload any) {
	s.conn.Publish(s.conn.NewMessage(t, payload, false))
}
