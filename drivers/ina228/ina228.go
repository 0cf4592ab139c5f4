// Package ina228 implements a driver for the Texas Instruments INA228
// 20-bit power monitor, as fitted on the solar/battery/load sense board.
//
// The chip transfers registers MSB first. Telemetry registers are 24 bits
// wide; decoding is table-driven, see registers.go.
//
// Datasheet: https://www.ti.com/lit/ds/symlink/ina228.pdf
package ina228

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// ErrWrongDevice is returned by Init when the DEVICE_ID register does not
// identify an INA228 (wrong strap address, missing pull-ups, dead part).
var ErrWrongDevice = errors.New("ina228: unexpected DEVICE_ID")

// Config carries the per-channel wiring facts the driver cannot discover.
type Config struct {
	Address     uint16  // 7-bit I2C address; AddressDefault if zero
	ShuntOhms   float64 // sense resistor value
	MaxCurrentA float64 // full-scale design current
}

// Device represents one INA228 on an I2C bus.
type Device struct {
	bus   drivers.I2C
	addr  uint16
	codec Codec

	tx [3]byte
	rx [3]byte
}

// New derives the calibration from cfg and returns an unconnected Device.
// No bus traffic happens until Init.
func New(bus drivers.I2C, cfg Config) (*Device, error) {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	cal, err := ComputeCalibration(cfg.ShuntOhms, cfg.MaxCurrentA)
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(cal)
	if err != nil {
		return nil, err
	}
	return &Device{bus: bus, addr: addr, codec: codec}, nil
}

func (d *Device) Address() uint16          { return d.addr }
func (d *Device) Calibration() Calibration { return d.codec.Calibration() }

// Connected probes DEVICE_ID without configuring anything.
func (d *Device) Connected() bool {
	id, err := d.readRegister16(regDeviceID)
	return err == nil && (id == deviceIDRevA || id == deviceIDRevB)
}

// Init verifies the part responds with a known DEVICE_ID, issues a reset,
// and programs continuous conversions plus the derived SHUNT_CAL.
func (d *Device) Init() error {
	id, err := d.readRegister16(regDeviceID)
	if err != nil {
		return err
	}
	if id != deviceIDRevA && id != deviceIDRevB {
		return ErrWrongDevice
	}

	if err := d.writeRegister16(regConfig, configReset); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond) // reset settle

	if err := d.writeRegister16(regADCConfig, adcConfigContinuous); err != nil {
		return err
	}
	return d.writeRegister16(regShuntCal, d.codec.Calibration().ShuntCal)
}

// BusVoltageV reads VBUS in volts.
func (d *Device) BusVoltageV() (float64, error) { return d.readKind(KindBusVoltage) }

// CurrentMilliA reads CURRENT in milliamps. Negative values mean reverse
// flow through the shunt (battery charging, for the battery channel).
func (d *Device) CurrentMilliA() (float64, error) { return d.readKind(KindCurrent) }

// PowerMilliW reads the hardware POWER register in milliwatts.
func (d *Device) PowerMilliW() (float64, error) { return d.readKind(KindPower) }

// EnergyJoules reads the free-running ENERGY accumulator in joules.
func (d *Device) EnergyJoules() (float64, error) { return d.readKind(KindEnergy) }

// ChargeCoulombs reads the signed CHARGE accumulator in coulombs.
func (d *Device) ChargeCoulombs() (float64, error) { return d.readKind(KindCharge) }

// Diagnostic reads the raw DIAG_ALRT flag register.
func (d *Device) Diagnostic() (uint16, error) { return d.readRegister16(regDiagAlert) }

func (d *Device) readKind(kind RegisterKind) (float64, error) {
	raw, err := d.readRegister24(decodeRules[kind].reg)
	if err != nil {
		return 0, err
	}
	return d.codec.Decode(kind, raw), nil
}

func (d *Device) readRegister16(reg byte) (uint16, error) {
	d.tx[0] = reg
	if err := d.bus.Tx(d.addr, d.tx[:1], d.rx[:2]); err != nil {
		return 0, err
	}
	return uint16(d.rx[0])<<8 | uint16(d.rx[1]), nil
}

func (d *Device) readRegister24(reg byte) (uint32, error) {
	d.tx[0] = reg
	if err := d.bus.Tx(d.addr, d.tx[:1], d.rx[:3]); err != nil {
		return 0, err
	}
	return uint32(d.rx[0])<<16 | uint32(d.rx[1])<<8 | uint32(d.rx[2]), nil
}

func (d *Device) writeRegister16(reg byte, val uint16) error {
	d.tx[0] = reg
	d.tx[1] = byte(val >> 8)
	d.tx[2] = byte(val)
	return d.bus.Tx(d.addr, d.tx[:3], nil)
}
