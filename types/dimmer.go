package types

// ---- Service state (retained) ----

type DimmerState struct {
	Level  string `json:"level"` // "running", "stopped"
	Status string `json:"status,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// ---- Setpoint sample (retained; last completed conversion) ----

type SampleValue struct {
	Raw uint16 `json:"raw"` // 0..1023
	TS  int64  `json:"ts_ms"`
}

// ---- Per-half-cycle firing telemetry ----

// FiringReport describes how one zero-cross event programmed the timer.
// Enabled=false means the timer was left disarmed (0% drive or a range
// error, in which case Error carries the code).
type FiringReport struct {
	Percent     uint8  `json:"percent"`
	Enabled     bool   `json:"enabled"`
	Divisor     uint16 `json:"divisor,omitempty"`
	Compare     uint8  `json:"compare,omitempty"`
	DelayMicros uint32 `json:"delay_us,omitempty"`
	Error       string `json:"error,omitempty"`
	TS          int64  `json:"ts_ms"`
}

// ---- Control ----

type DimmerControl struct {
	Verb string `json:"verb"` // "sample_now"
}

type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
