package storage

import (
	"powermon-go/bus"
	"powermon-go/types"
)

// Bus topics published by the writer.
const (
	TopicState      = "storage/state"       // retained; payload DeviceState string
	TopicFlush      = "storage/flush"       // payload rows written
	TopicWriteError = "storage/write_error" // payload op name
	TopicBufferFull = "storage/buffer_full" // payload buffered entry count
)

// Strategy selects how Log disposes of entries.
type Strategy uint8

const (
	// StrategyNone discards entries. Used while storage is meant to be
	// powered down or idle.
	StrategyNone Strategy = iota

	// StrategyImmediate writes each entry in its own open/append/close
	// session.
	StrategyImmediate

	// StrategyBufferedBatch accumulates entries in RAM; Flush initializes
	// the device if needed, writes everything, then deinitializes it.
	StrategyBufferedBatch

	// StrategyPeriodicBatch accumulates entries in RAM and Poll flushes
	// them on a fixed cadence. The device stays initialized between
	// flushes. A final Flush on exit is mandatory.
	StrategyPeriodicBatch
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyImmediate:
		return "immediate"
	case StrategyBufferedBatch:
		return "buffered_batch"
	case StrategyPeriodicBatch:
		return "periodic_batch"
	}
	return "invalid"
}

// Options configures a Writer.
type Options struct {
	FileName      string
	Channels      []string // CSV column order
	BufferEntries int
	BatchPeriodMs int64
}

// Writer drives one BlockStorage through the lifecycle machine and renders
// entries to CSV. Not safe for concurrent use; the harness owns it from a
// single loop.
type Writer struct {
	store BlockStorage
	codec *csvCodec
	opts  Options
	pub   bus.Publisher

	state       DeviceState
	strategy    Strategy
	buf         []types.LogEntry
	file        File
	nextFlushMs int64
}

func NewWriter(store BlockStorage, opts Options, pub bus.Publisher) *Writer {
	return &Writer{
		store: store,
		codec: newCSVCodec(opts.Channels),
		opts:  opts,
		pub:   pub,
		buf:   make([]types.LogEntry, 0, opts.BufferEntries),
	}
}

func (w *Writer) State() DeviceState { return w.state }
func (w *Writer) Strategy() Strategy { return w.strategy }
func (w *Writer) Buffered() int      { return len(w.buf) }

// Init brings the device from Uninitialized to Idle. Init while already
// Idle is a no-op; Init during a write session is a lifecycle violation.
func (w *Writer) Init() error {
	switch w.state {
	case Idle:
		return nil
	case WriteInFlight:
		return &LifecycleViolation{Op: "init", From: w.state}
	}
	if err := w.store.Init(); err != nil {
		return &InitError{Err: err}
	}
	w.setState(Idle)
	return nil
}

// Deinit releases the device. Deinit while already Uninitialized is a
// no-op; Deinit during a write session is refused and the session stays
// live.
func (w *Writer) Deinit() error {
	switch w.state {
	case Uninitialized:
		return nil
	case WriteInFlight:
		return &LifecycleViolation{Op: "deinit", From: w.state}
	}
	if err := w.store.Deinit(); err != nil {
		return &InitError{Err: err}
	}
	w.setState(Uninitialized)
	return nil
}

// SetStrategy switches the disposal mode. Callers flush under the old
// strategy first; switching never writes. Periodic mode arms its cadence
// from now.
func (w *Writer) SetStrategy(s Strategy, nowMs int64) {
	w.strategy = s
	if s == StrategyPeriodicBatch {
		w.nextFlushMs = nowMs + w.opts.BatchPeriodMs
	}
}

// Log disposes of one entry under the current strategy. Under the batch
// strategies a full buffer drops the newest entry and returns
// ErrBufferFull; everything already buffered is preserved.
func (w *Writer) Log(entry types.LogEntry, nowMs int64) error {
	switch w.strategy {
	case StrategyNone:
		return nil
	case StrategyImmediate:
		return w.writeEntries([]types.LogEntry{entry}, nowMs)
	}

	if len(w.buf) >= w.opts.BufferEntries {
		w.emit(bus.Event{Topic: TopicBufferFull, Payload: len(w.buf), TS: nowMs,
			Err: ErrBufferFull.Error()})
		return ErrBufferFull
	}
	w.buf = append(w.buf, entry)
	return nil
}

// Poll runs the periodic-batch cadence. The cadence re-arms whether or not
// anything was buffered; a failed flush keeps the buffer for the next tick.
func (w *Writer) Poll(nowMs int64) error {
	if w.strategy != StrategyPeriodicBatch || nowMs < w.nextFlushMs {
		return nil
	}
	w.nextFlushMs = nowMs + w.opts.BatchPeriodMs
	return w.Flush(nowMs)
}

// Flush writes all buffered entries in one session. The buffer is cleared
// only after the session closes cleanly; any failure keeps every entry for
// retry. Under StrategyBufferedBatch the device is deinitialized after a
// successful flush.
func (w *Writer) Flush(nowMs int64) error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.writeEntries(w.buf, nowMs); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	if w.strategy == StrategyBufferedBatch {
		return w.Deinit()
	}
	return nil
}

// writeEntries is one full write session: init if needed, begin, append
// every row, end. The header is written exactly once per file, decided by
// the size of the freshly opened handle.
func (w *Writer) writeEntries(entries []types.LogEntry, nowMs int64) error {
	if w.state == Uninitialized {
		if err := w.Init(); err != nil {
			w.emit(bus.Event{Topic: TopicWriteError, Payload: "init", TS: nowMs, Err: err.Error()})
			return err
		}
	}
	if err := w.beginWrite(); err != nil {
		w.emit(bus.Event{Topic: TopicWriteError, Payload: "begin_write", TS: nowMs, Err: err.Error()})
		return err
	}
	for _, e := range entries {
		if err := w.file.Append(w.codec.Row(e)); err != nil {
			werr := &WriteError{Op: "append", Err: err}
			w.abortWrite()
			w.emit(bus.Event{Topic: TopicWriteError, Payload: "append", TS: nowMs, Err: werr.Error()})
			return werr
		}
	}
	if err := w.endWrite(); err != nil {
		w.emit(bus.Event{Topic: TopicWriteError, Payload: "end_write", TS: nowMs, Err: err.Error()})
		return err
	}
	w.emit(bus.Event{Topic: TopicFlush, Payload: len(entries), TS: nowMs})
	return nil
}

func (w *Writer) beginWrite() error {
	if w.state != Idle {
		return &LifecycleViolation{Op: "begin_write", From: w.state}
	}
	f, err := w.store.Open(w.opts.FileName)
	if err != nil {
		return &WriteError{Op: "open", Err: err}
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return &WriteError{Op: "size", Err: err}
	}
	if size == 0 {
		if err := f.Append(w.codec.Header()); err != nil {
			f.Close()
			return &WriteError{Op: "header", Err: err}
		}
	}
	w.file = f
	w.setState(WriteInFlight)
	return nil
}

func (w *Writer) endWrite() error {
	if w.state != WriteInFlight {
		return &LifecycleViolation{Op: "end_write", From: w.state}
	}
	err := w.file.Close()
	w.file = nil
	w.setState(Idle)
	if err != nil {
		return &WriteError{Op: "close", Err: err}
	}
	return nil
}

// abortWrite tears the session down after an append failure. Close errors
// are secondary to the append error already being returned.
func (w *Writer) abortWrite() {
	if w.state != WriteInFlight {
		return
	}
	w.file.Close()
	w.file = nil
	w.setState(Idle)
}

func (w *Writer) setState(s DeviceState) {
	w.state = s
	w.emit(bus.Event{Topic: TopicState, Payload: s.String(), Retained: true})
}

func (w *Writer) emit(ev bus.Event) {
	if w.pub != nil {
		w.pub.Emit(ev)
	}
}
