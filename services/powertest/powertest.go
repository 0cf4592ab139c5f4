// Package powertest walks the storage power-draw test sequence: one fixed
// dwell per state, sampling throughout, with each state imposing its own
// storage posture. The historical state labels are kept so logs stay
// comparable across firmware generations.
package powertest

import (
	"context"

	"powermon-go/bus"
	"powermon-go/services/sampler"
	"powermon-go/services/storage"
	"powermon-go/types"
)

// Bus topics published by the harness.
const (
	TopicState     = "harness/state"      // retained; payload state label
	TopicStateDone = "harness/state_done" // payload Stats for the finished state
	TopicDone      = "harness/done"       // payload number of states completed
)

// State is one phase of the test sequence.
type State uint8

const (
	SDDeinitialized State = iota
	SDIdleStandby
	SustainedWrite
	PeriodicBatch
)

// Label returns the historical log label for the state.
func (s State) Label() string {
	switch s {
	case SDDeinitialized:
		return "MCU_Active_SD_Deinitialized"
	case SDIdleStandby:
		return "MCU_Active_SD_Idle_Standby"
	case SustainedWrite:
		return "Sustained_SD_Write"
	case PeriodicBatch:
		return "Periodic_Batch_Write_Cycle"
	}
	return "invalid"
}

// sequence is the fixed walk order.
var sequence = [...]State{SDDeinitialized, SDIdleStandby, SustainedWrite, PeriodicBatch}

// Options configures a Harness.
type Options struct {
	DwellMs int64 // time spent in each state
	TickMs  int64 // loop granularity; defaults to 100 ms
}

// Harness drives the sampler and writer through the state sequence from a
// single cooperative loop. Cancellation is honored at state boundaries
// only; a state always runs its full dwell and exit flush.
type Harness struct {
	sampler *sampler.Scheduler
	writer  *storage.Writer
	clock   types.Clock
	pub     bus.Publisher
	opts    Options
}

func New(s *sampler.Scheduler, w *storage.Writer, clock types.Clock, opts Options, pub bus.Publisher) *Harness {
	if opts.TickMs <= 0 {
		opts.TickMs = 100
	}
	return &Harness{sampler: s, writer: w, clock: clock, pub: pub, opts: opts}
}

// Run executes the full sequence and returns per-state statistics. On
// cancellation the states completed so far are returned with ctx.Err().
func (h *Harness) Run(ctx context.Context) ([]Stats, error) {
	results := make([]Stats, 0, len(sequence))
	for _, st := range sequence {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		results = append(results, h.runState(st))
	}
	h.emit(bus.Event{Topic: TopicDone, Payload: len(results), TS: h.clock.NowMs()})
	return results, nil
}

func (h *Harness) runState(st State) Stats {
	now := h.clock.NowMs()
	label := st.Label()
	h.sampler.SetState(label)
	h.enterState(st, now)
	h.emit(bus.Event{Topic: TopicState, Payload: label, TS: now, Retained: true})

	stats := Stats{State: label}
	end := now + h.opts.DwellMs
	for now < end {
		if entry := h.sampler.Poll(now); entry != nil {
			stats.observe(entry)
			// Failures are already on the bus; the run keeps going.
			_ = h.writer.Log(*entry, now)
		}
		_ = h.writer.Poll(now)
		h.clock.SleepMs(h.opts.TickMs)
		now = h.clock.NowMs()
	}

	// Mandatory exit flush under the strategy that accumulated the data.
	_ = h.writer.Flush(now)

	h.emit(bus.Event{Topic: TopicStateDone, Payload: stats, TS: now})
	return stats
}

// enterState applies the state's storage posture. Lifecycle errors go out
// on the bus via the writer; sampling continues regardless.
func (h *Harness) enterState(st State, nowMs int64) {
	switch st {
	case SDDeinitialized:
		h.writer.SetStrategy(storage.StrategyNone, nowMs)
		_ = h.writer.Deinit()
	case SDIdleStandby:
		h.writer.SetStrategy(storage.StrategyNone, nowMs)
		_ = h.writer.Init()
	case SustainedWrite:
		h.writer.SetStrategy(storage.StrategyImmediate, nowMs)
		_ = h.writer.Init()
	case PeriodicBatch:
		h.writer.SetStrategy(storage.StrategyPeriodicBatch, nowMs)
		_ = h.writer.Init()
	}
}

func (h *Harness) emit(ev bus.Event) {
	if h.pub != nil {
		h.pub.Emit(ev)
	}
}
