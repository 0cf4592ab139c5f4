package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Monotonic is a millisecond counter anchored at construction time. It is
// immune to wall-clock adjustments, which matters for dwell timing on
// devices whose RTC is set mid-run.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic { return &Monotonic{start: time.Now()} }

func (m *Monotonic) NowMs() int64 { return time.Since(m.start).Milliseconds() }

func (m *Monotonic) SleepMs(ms int64) {
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
