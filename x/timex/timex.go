package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint64) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return 1_000_000_000 / freqHz
}

// Micros converts a duration to whole microseconds.
func Micros(d time.Duration) int64 { return int64(d / time.Microsecond) }
