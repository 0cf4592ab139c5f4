// Package sampler polls every monitoring channel on a fixed cadence and
// assembles the readings into log entries. A channel that fails to read
// never blocks the entry: it contributes a zeroed, invalid sample and the
// failure goes out on the bus.
package sampler

import (
	"powermon-go/bus"
	"powermon-go/errcode"
	"powermon-go/types"
)

// TopicReadError carries per-channel read failures. Payload is the channel
// name, Err the stable code.
const TopicReadError = "sampler/read_error"

// Reader is the per-channel acquisition surface the scheduler needs.
// *ina228.Device satisfies it.
type Reader interface {
	BusVoltageV() (float64, error)
	CurrentMilliA() (float64, error)
	PowerMilliW() (float64, error)
	EnergyJoules() (float64, error)
	ChargeCoulombs() (float64, error)
	Diagnostic() (uint16, error)
}

// Channel binds a reader to its configured name.
type Channel struct {
	Name   string
	Reader Reader
}

// Scheduler produces one LogEntry per sampling interval. Not safe for
// concurrent use; the harness drives it from a single loop.
type Scheduler struct {
	channels   []Channel
	intervalMs int64
	runID      uint32
	pub        bus.Publisher

	state     string
	seq       uint64
	nextDueMs int64
}

func New(channels []Channel, intervalMs int64, runID uint32, pub bus.Publisher) *Scheduler {
	return &Scheduler{
		channels:   channels,
		intervalMs: intervalMs,
		runID:      runID,
		pub:        pub,
	}
}

// SetState changes the label stamped on subsequent entries.
func (s *Scheduler) SetState(state string) { s.state = state }

func (s *Scheduler) State() string { return s.state }
func (s *Scheduler) RunID() uint32 { return s.runID }

// Poll returns the next entry when the sampling interval has elapsed, nil
// otherwise. The next due time is anchored to now, not to the previous due
// time: a stall never produces a burst of catch-up entries.
func (s *Scheduler) Poll(nowMs int64) *types.LogEntry {
	if nowMs < s.nextDueMs {
		return nil
	}
	s.nextDueMs = nowMs + s.intervalMs
	entry := s.sample(nowMs)
	return &entry
}

func (s *Scheduler) sample(nowMs int64) types.LogEntry {
	s.seq++
	entry := types.LogEntry{
		RunID:       s.runID,
		Seq:         s.seq,
		State:       s.state,
		TimestampMs: nowMs,
		Samples:     make([]types.MeasurementSample, 0, len(s.channels)),
	}
	for _, ch := range s.channels {
		entry.Samples = append(entry.Samples, s.readChannel(ch, nowMs))
	}
	return entry
}

// readChannel reads all telemetry for one channel. The first failed
// register read invalidates the whole sample: partial readings would pair
// a voltage from one conversion with a current from another.
func (s *Scheduler) readChannel(ch Channel, nowMs int64) types.MeasurementSample {
	m := types.MeasurementSample{Channel: ch.Name, TimestampMs: nowMs}

	fail := func(err error) types.MeasurementSample {
		if s.pub != nil {
			s.pub.Emit(bus.Event{
				Topic:   TopicReadError,
				Payload: ch.Name,
				TS:      nowMs,
				Err:     string(errcode.ChannelReadFailed),
			})
		}
		return types.MeasurementSample{Channel: ch.Name, TimestampMs: nowMs}
	}

	var err error
	if m.BusVoltageV, err = ch.Reader.BusVoltageV(); err != nil {
		return fail(err)
	}
	if m.CurrentMA, err = ch.Reader.CurrentMilliA(); err != nil {
		return fail(err)
	}
	if m.PowerHwMW, err = ch.Reader.PowerMilliW(); err != nil {
		return fail(err)
	}
	if m.EnergyJ, err = ch.Reader.EnergyJoules(); err != nil {
		return fail(err)
	}
	if m.ChargeC, err = ch.Reader.ChargeCoulombs(); err != nil {
		return fail(err)
	}
	if m.Diagnostic, err = ch.Reader.Diagnostic(); err != nil {
		return fail(err)
	}

	// Cross-check path: P = V × I, independent of the POWER register.
	m.PowerCalcMW = m.BusVoltageV * m.CurrentMA
	m.Valid = true
	return m
}
