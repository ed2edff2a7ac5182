package types

// ---- Common HAL state (retained) ----

type HALState struct {
	Level  string `json:"level"`  // e.g. "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"`
}

// ---- Capability kinds & info ----

type Kind string

const (
	KindLED     Kind = "led"
	KindPWM     Kind = "pwm"
	KindServo   Kind = "servo"
	KindDisplay Kind = "display"
)

// Info envelope each device/cap exposes (retained).
type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"`
}

// ---- LED capability (binary indicator) ----

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	On bool `json:"on"`
}

type LEDSet struct {
	On bool `json:"on"`
}

// ---- PWM capability (alarm tone) ----

type PWMInfo struct {
	Pin    int    `json:"pin"`
	FreqHz uint64 `json:"freq_hz,omitempty"`
	Top    uint16 `json:"top,omitempty"`
}

type PWMValue struct {
	Level uint16 `json:"level"` // 0..Top
}

type PWMSet struct {
	Level uint16 `json:"level"` // 0..Top
}

// ---- Servo capability (positional actuator) ----

type ServoInfo struct {
	Pin         int `json:"pin"`
	NearPulseMS int `json:"near_pulse_ms"`
	FarPulseMS  int `json:"far_pulse_ms"`
	SettleMS    int `json:"settle_ms"`
}

// ServoMove drives one open/close pulse sequence.
type ServoMove struct {
	Near bool `json:"near"`
}

type ServoValue struct {
	Near bool `json:"near"`
}

// ---- Display capability (character display) ----

type DisplayInfo struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// DisplayShow replaces the whole display content with Text.
type DisplayShow struct {
	Text string `json:"text"`
}

// ---- Ranging telemetry ----

// DistanceValue is published by the control loop after each successful cycle.
type DistanceValue struct {
	Centimeters float64 `json:"cm"`
	PulseUS     int64   `json:"pulse_us"`
	TSms        int64   `json:"ts_ms"`
}

// ---- Generic replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ---- Public HAL configuration ----

type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

type HALDevice struct {
	ID     string `json:"id"`     // logical device id, e.g. "indicator"
	Type   string `json:"type"`   // e.g. "gpio_dout"
	Params any    `json:"params"` // device-specific params (typed struct)
}
