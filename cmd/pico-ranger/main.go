package main

import (
	"context"
	"time"

	"rangewatch-go/bus"
	"rangewatch-go/drivers/hcsr04"
	"rangewatch-go/services/diaglog"
	"rangewatch-go/services/hal"
	"rangewatch-go/services/rangeloop"
	"rangewatch-go/types"

	"rangewatch-go/services/hal/devices/char_display"
	"rangewatch-go/services/hal/devices/gpio_dout"
	"rangewatch-go/services/hal/devices/pwm_out"
	"rangewatch-go/services/hal/devices/servo_pulse"
)

// Board wiring (GP numbering).
const (
	pinIndicator = 2
	pinAlarm     = 3
	pinServoA    = 4
	pinServoB    = 6
	pinEcho      = 20
	pinTrigger   = 21
)

const halReadyTimeout = 5 * time.Second

func main() {
	// Let the USB console enumerate before the first log lines.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	logConn := b.NewConnection("diaglog")
	mainConn := b.NewConnection("main")
	loopConn := b.NewConnection("rangeloop")

	println("[main] starting diaglog ...")
	go diaglog.Run(ctx, logConn, diaglog.DefaultSink())

	reg := hal.DefaultRegistry()
	println("[main] starting hal ...")
	go hal.Run(ctx, halConn, hal.Resources{Reg: reg})

	display, err := hal.DefaultTextDisplay()
	if err != nil {
		println("[main] display init failed:", err.Error())
	}

	cfg := types.HALConfig{
		Devices: []types.HALDevice{
			{ID: "indicator", Type: "gpio_dout",
				Params: gpio_dout.Params{Pin: pinIndicator}},
			{ID: "alarm", Type: "pwm_out",
				Params: pwm_out.Params{Pin: pinAlarm, FreqHz: 2000}},
			{ID: "servo-a", Type: "servo_pulse",
				Params: servo_pulse.Params{Pin: pinServoA, NearPulseMS: 2, FarPulseMS: 1}},
			{ID: "servo-b", Type: "servo_pulse",
				Params: servo_pulse.Params{Pin: pinServoB, NearPulseMS: 1, FarPulseMS: 2}},
		},
	}
	if display != nil {
		cfg.Devices = append(cfg.Devices, types.HALDevice{
			ID: "display", Type: "char_display",
			Params: char_display.Params{Display: display},
		})
	}
	println("[main] publishing config/hal ...")
	mainConn.Publish(mainConn.NewMessage(bus.T("config", "hal"), cfg, true))

	if !waitHALReady(mainConn) {
		println("[main] hal never became ready; continuing anyway")
	}

	println("[main] claiming ranging pins ...")
	trig, err := reg.ClaimGPIO("ranger", pinTrigger)
	if err != nil {
		println("[main] trigger claim failed:", err.Error())
		return
	}
	echo, err := reg.ClaimGPIO("ranger", pinEcho)
	if err != nil {
		println("[main] echo claim failed:", err.Error())
		return
	}

	ranger, err := hcsr04.New(rangePin{trig}, rangePin{echo})
	if err != nil {
		println("[main] ranger init failed:", err.Error())
		return
	}

	println("[main] starting control loop ...")
	rangeloop.Run(ctx, loopConn, ranger, rangeloop.Config{})
}

// waitHALReady blocks until the HAL reports ready or the timeout passes.
func waitHALReady(conn *bus.Connection) bool {
	sub := conn.Subscribe(bus.T("hal", "state"))
	defer conn.Unsubscribe(sub)
	deadline := time.After(halReadyTimeout)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// rangePin narrows a claimed GPIO handle to the ranging driver's contract.
type rangePin struct{ h hal.GPIOHandle }

func (p rangePin) ConfigureInput() error              { return p.h.ConfigureInput(hal.PullNone) }
func (p rangePin) ConfigureOutput(initial bool) error { return p.h.ConfigureOutput(initial) }
func (p rangePin) Set(level bool)                     { p.h.Set(level) }
func (p rangePin) Get() bool                          { return p.h.Get() }
