package storage

import (
	"errors"
	"strings"
	"testing"

	"powermon-go/bus"
	"powermon-go/errcode"
	"powermon-go/types"
)

// memStore is an in-memory BlockStorage with injectable failures.
type memStore struct {
	files map[string][]byte

	initCalls   int
	deinitCalls int
	opens       int

	failInit   error
	failOpen   error
	failAppend error
	failClose  error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Init() error {
	if m.failInit != nil {
		return m.failInit
	}
	m.initCalls++
	return nil
}

func (m *memStore) Open(name string) (File, error) {
	if m.failOpen != nil {
		return nil, m.failOpen
	}
	m.opens++
	return &memFile{store: m, name: name}, nil
}

func (m *memStore) Deinit() error {
	m.deinitCalls++
	return nil
}

func (m *memStore) lines(name string) []string {
	data := strings.TrimSuffix(string(m.files[name]), "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}

type memFile struct {
	store *memStore
	name  string
}

func (f *memFile) Append(p []byte) error {
	if f.store.failAppend != nil {
		return f.store.failAppend
	}
	f.store.files[f.name] = append(f.store.files[f.name], p...)
	return nil
}

func (f *memFile) Size() (int64, error) {
	return int64(len(f.store.files[f.name])), nil
}

func (f *memFile) Close() error { return f.store.failClose }

func entryAt(ts int64) types.LogEntry {
	return types.LogEntry{
		RunID:       1,
		State:       "Sustained_SD_Write",
		TimestampMs: ts,
		Samples: []types.MeasurementSample{
			{Channel: "Solar", BusVoltageV: 18, CurrentMA: 500, PowerHwMW: 9000, PowerCalcMW: 9000, Valid: true},
		},
	}
}

func newTestWriter(store *memStore, bufCap int) *Writer {
	return NewWriter(store, Options{
		FileName:      "test.csv",
		Channels:      []string{"Solar"},
		BufferEntries: bufCap,
		BatchPeriodMs: 30000,
	}, nil)
}

func TestLifecycleTransitions(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)

	if w.State() != Uninitialized {
		t.Fatalf("initial state = %v", w.State())
	}
	if err := w.Init(); err != nil || w.State() != Idle {
		t.Fatalf("Init: %v, state %v", err, w.State())
	}
	// Init while Idle is a no-op, not a second device init.
	if err := w.Init(); err != nil || store.initCalls != 1 {
		t.Fatalf("repeated Init: %v, device inits %d", err, store.initCalls)
	}
	if err := w.Deinit(); err != nil || w.State() != Uninitialized {
		t.Fatalf("Deinit: %v, state %v", err, w.State())
	}
	// Deinit while Uninitialized is idempotent.
	if err := w.Deinit(); err != nil || store.deinitCalls != 1 {
		t.Fatalf("repeated Deinit: %v, device deinits %d", err, store.deinitCalls)
	}
}

func TestDeinitRefusedDuringWrite(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)

	if err := w.Init(); err != nil {
		t.Fatal(err)
	}
	if err := w.beginWrite(); err != nil {
		t.Fatal(err)
	}

	err := w.Deinit()
	var lv *LifecycleViolation
	if !errors.As(err, &lv) || lv.Op != "deinit" || lv.From != WriteInFlight {
		t.Fatalf("Deinit in-flight = %v, want LifecycleViolation{deinit, write_in_flight}", err)
	}
	if errcode.Of(err) != errcode.LifecycleViolation {
		t.Errorf("code = %v", errcode.Of(err))
	}
	if w.State() != WriteInFlight {
		t.Fatalf("state changed to %v after refused deinit", w.State())
	}

	if err := w.endWrite(); err != nil {
		t.Fatal(err)
	}
	if err := w.Deinit(); err != nil {
		t.Fatalf("Deinit after endWrite: %v", err)
	}
}

func TestImmediateWritesHeaderOnce(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)
	w.SetStrategy(StrategyImmediate, 0)

	if err := w.Log(entryAt(1000), 1000); err != nil {
		t.Fatal(err)
	}
	if err := w.Log(entryAt(2000), 2000); err != nil {
		t.Fatal(err)
	}

	lines := store.lines("test.csv")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows:\n%s", len(lines), store.files["test.csv"])
	}
	if !strings.HasPrefix(lines[0], "RunID,State,Timestamp_ms,Solar_Voltage_V") {
		t.Fatalf("header = %q", lines[0])
	}
	// Each immediate write is its own open/close session.
	if store.opens != 2 {
		t.Errorf("opens = %d, want 2", store.opens)
	}
	if w.State() != Idle {
		t.Errorf("state after immediate writes = %v, want idle", w.State())
	}
}

func TestFlushAtomicity(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)
	w.SetStrategy(StrategyPeriodicBatch, 0)

	for ts := int64(1000); ts <= 3000; ts += 1000 {
		if err := w.Log(entryAt(ts), ts); err != nil {
			t.Fatal(err)
		}
	}

	store.failAppend = errors.New("card yanked")
	err := w.Flush(4000)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("Flush err = %v, want *WriteError", err)
	}
	if w.Buffered() != 3 {
		t.Fatalf("buffer after failed flush = %d, want 3 retained", w.Buffered())
	}
	if w.State() != Idle {
		t.Fatalf("state after failed flush = %v, want idle", w.State())
	}

	store.failAppend = nil
	if err := w.Flush(5000); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if w.Buffered() != 0 {
		t.Fatalf("buffer after retry = %d", w.Buffered())
	}
	if lines := store.lines("test.csv"); len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows", len(lines))
	}
}

// A close failure ends the session but must not lose the buffer.
func TestFlushKeepsBufferWhenCloseFails(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)
	w.SetStrategy(StrategyPeriodicBatch, 0)

	if err := w.Log(entryAt(1000), 1000); err != nil {
		t.Fatal(err)
	}

	store.failClose = errors.New("controller timeout")
	err := w.Flush(2000)
	var we *WriteError
	if !errors.As(err, &we) || we.Op != "close" {
		t.Fatalf("Flush err = %v, want close WriteError", err)
	}
	if w.Buffered() != 1 {
		t.Fatalf("buffer = %d after failed close, want 1 retained", w.Buffered())
	}
	if w.State() != Idle {
		t.Fatalf("state = %v, want idle (handle released)", w.State())
	}
}

func TestBufferDropsNewestAtCapacity(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 2)
	w.SetStrategy(StrategyPeriodicBatch, 0)

	if err := w.Log(entryAt(1000), 1000); err != nil {
		t.Fatal(err)
	}
	if err := w.Log(entryAt(2000), 2000); err != nil {
		t.Fatal(err)
	}
	if err := w.Log(entryAt(3000), 3000); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Log at capacity = %v, want ErrBufferFull", err)
	}
	if w.Buffered() != 2 {
		t.Fatalf("buffered = %d, want 2", w.Buffered())
	}

	if err := w.Flush(4000); err != nil {
		t.Fatal(err)
	}
	lines := store.lines("test.csv")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	// The oldest entries survive; the overflow entry was dropped.
	if !strings.Contains(lines[1], ",1000,") || !strings.Contains(lines[2], ",2000,") {
		t.Fatalf("unexpected rows:\n%s\n%s", lines[1], lines[2])
	}
}

func TestBufferedBatchInitsOnFlushAndDeinitsAfter(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 4)
	w.SetStrategy(StrategyBufferedBatch, 0)

	if err := w.Log(entryAt(1000), 1000); err != nil {
		t.Fatal(err)
	}
	if store.initCalls != 0 || w.State() != Uninitialized {
		t.Fatal("buffering must not touch the device")
	}

	if err := w.Flush(2000); err != nil {
		t.Fatal(err)
	}
	if store.initCalls != 1 || store.deinitCalls != 1 {
		t.Fatalf("init/deinit = %d/%d, want 1/1", store.initCalls, store.deinitCalls)
	}
	if w.State() != Uninitialized {
		t.Fatalf("state after buffered flush = %v, want uninitialized", w.State())
	}
	if lines := store.lines("test.csv"); len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
}

func TestPeriodicCadence(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store, 60)
	if err := w.Init(); err != nil {
		t.Fatal(err)
	}
	w.SetStrategy(StrategyPeriodicBatch, 0)

	for ts := int64(1000); ts <= 5000; ts += 1000 {
		if err := w.Log(entryAt(ts), ts); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.Poll(29999); err != nil {
		t.Fatal(err)
	}
	if store.opens != 0 {
		t.Fatal("flushed before the cadence elapsed")
	}
	if err := w.Poll(30000); err != nil {
		t.Fatal(err)
	}
	if w.Buffered() != 0 || len(store.lines("test.csv")) != 6 {
		t.Fatalf("after cadence flush: buffered %d, lines %d", w.Buffered(), len(store.lines("test.csv")))
	}

	// Cadence re-arms from the flush tick.
	if err := w.Log(entryAt(31000), 31000); err != nil {
		t.Fatal(err)
	}
	if err := w.Poll(59999); err != nil {
		t.Fatal(err)
	}
	if w.Buffered() != 1 {
		t.Fatal("flushed again before the next period")
	}
	if err := w.Poll(60000); err != nil {
		t.Fatal(err)
	}
	if w.Buffered() != 0 {
		t.Fatal("second cadence flush missing")
	}
}

func TestInitFailureSurfacesAndRetains(t *testing.T) {
	store := newMemStore()
	store.failInit = errors.New("no card")
	w := newTestWriter(store, 4)
	w.SetStrategy(StrategyBufferedBatch, 0)

	if err := w.Log(entryAt(1000), 1000); err != nil {
		t.Fatal(err)
	}
	err := w.Flush(2000)
	var ie *InitError
	if !errors.As(err, &ie) || errcode.Of(err) != errcode.StorageInitFailed {
		t.Fatalf("Flush err = %v (code %v), want *InitError", err, errcode.Of(err))
	}
	if w.Buffered() != 1 || w.State() != Uninitialized {
		t.Fatalf("buffer %d, state %v after failed init", w.Buffered(), w.State())
	}
}

func TestWriterBusEvents(t *testing.T) {
	b := bus.New(16)
	flushes := b.Subscribe(TopicFlush)
	defer flushes.Unsubscribe()
	fulls := b.Subscribe(TopicBufferFull)
	defer fulls.Unsubscribe()

	store := newMemStore()
	w := NewWriter(store, Options{
		FileName:      "test.csv",
		Channels:      []string{"Solar"},
		BufferEntries: 1,
		BatchPeriodMs: 30000,
	}, b)
	w.SetStrategy(StrategyPeriodicBatch, 0)

	w.Log(entryAt(1000), 1000)
	w.Log(entryAt(2000), 2000) // dropped

	select {
	case ev := <-fulls.Events():
		if ev.Err != errcode.BufferFull.Error() {
			t.Fatalf("buffer_full event = %+v", ev)
		}
	default:
		t.Fatal("expected buffer_full event")
	}

	if err := w.Flush(3000); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-flushes.Events():
		if ev.Payload.(int) != 1 {
			t.Fatalf("flush event rows = %v, want 1", ev.Payload)
		}
	default:
		t.Fatal("expected flush event")
	}

	// Retained state topic reflects the final lifecycle position.
	if ev, ok := b.Retained(TopicState); !ok || ev.Payload.(string) != "idle" {
		t.Fatalf("retained state = %+v, %v", ev, ok)
	}
}
