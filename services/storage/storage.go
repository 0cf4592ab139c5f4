// Package storage owns the block-device lifecycle and the CSV log writer.
// The lifecycle is an explicit three-state machine; every transition is
// checked and illegal requests fail with *LifecycleViolation without
// touching the device. Readiness is judged by Init() and Open() results
// only, never by existence pre-checks.
package storage

import "powermon-go/errcode"

// DeviceState is the storage device lifecycle position.
type DeviceState uint8

const (
	Uninitialized DeviceState = iota
	Idle
	WriteInFlight
)

func (s DeviceState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case WriteInFlight:
		return "write_in_flight"
	}
	return "invalid"
}

// BlockStorage is the device capability the writer drives. FileStore
// implements it on a host directory; MCU targets supply an SD-backed one.
type BlockStorage interface {
	Init() error
	Open(name string) (File, error)
	Deinit() error
}

// File is an open, append-only log file.
type File interface {
	Append(p []byte) error
	Size() (int64, error)
	Close() error
}

// LifecycleViolation reports a request that is illegal in the current
// state. The state is left unchanged.
type LifecycleViolation struct {
	Op   string
	From DeviceState
}

func (e *LifecycleViolation) Error() string {
	return "storage: cannot " + e.Op + " while " + e.From.String()
}

func (e *LifecycleViolation) Code() errcode.Code { return errcode.LifecycleViolation }

// InitError wraps a device init failure.
type InitError struct {
	Err error
}

func (e *InitError) Error() string      { return "storage: init: " + e.Err.Error() }
func (e *InitError) Unwrap() error      { return e.Err }
func (e *InitError) Code() errcode.Code { return errcode.StorageInitFailed }

// WriteError wraps an open/append/close failure during a write session.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string      { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *WriteError) Unwrap() error      { return e.Err }
func (e *WriteError) Code() errcode.Code { return errcode.StorageWriteFailed }

// ErrBufferFull is returned by Log when the RAM buffer is at capacity and
// the newest entry was dropped.
var ErrBufferFull error = errcode.BufferFull
