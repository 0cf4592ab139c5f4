package main

import (
	"errors"
	"math"

	"powermon-go/drivers/ina228"
	"powermon-go/services/config"
	"powermon-go/types"
	"powermon-go/x/wave"
)

// simI2C emulates a bus of INA228s so the harness runs end to end on a
// host. It answers the chip's register map with values synthesized from
// deterministic waveforms, encoded exactly as the silicon would.
type simI2C struct {
	clock types.Clock
	chans map[uint16]*simChannel
}

// Register pointers as the emulated chip sees them.
const (
	simRegVBus     = 0x05
	simRegCurrent  = 0x07
	simRegPower    = 0x08
	simRegEnergy   = 0x09
	simRegCharge   = 0x0A
	simRegDiagAlrt = 0x0B
	simRegDeviceID = 0x3F
)

type simChannel struct {
	cal     ina228.Calibration
	voltage func(tMs int64) float64 // volts
	current func(tMs int64) float64 // amps
}

func newSimI2C(clock types.Clock, cfg config.Config) (*simI2C, error) {
	s := &simI2C{clock: clock, chans: map[uint16]*simChannel{}}
	for _, ch := range cfg.Channels {
		cal, err := ina228.ComputeCalibration(ch.ShuntOhms, ch.MaxCurrentA)
		if err != nil {
			return nil, err
		}
		s.chans[ch.Address] = &simChannel{
			cal:     cal,
			voltage: simVoltage(ch.Name),
			current: simCurrent(ch.Name),
		}
	}
	return s, nil
}

// simVoltage and simCurrent give each named channel a distinct, plausible
// profile: solar ramps with the "sun", the load is steady, and the battery
// absorbs the difference.
func simVoltage(name string) func(int64) float64 {
	switch name {
	case "Solar":
		return func(t int64) float64 { return wave.Triangle(t, 120_000, 16.5, 19.5) }
	case "Battery":
		return func(t int64) float64 { return wave.Triangle(t, 120_000, 12.4, 12.8) }
	default:
		return func(int64) float64 { return 12.0 }
	}
}

func simCurrent(name string) func(int64) float64 {
	switch name {
	case "Solar":
		return func(t int64) float64 { return wave.Triangle(t, 120_000, 0, 1.0) }
	case "Battery":
		// Discharges under load, charges when the sun is up.
		return func(t int64) float64 { return 0.4 - wave.Triangle(t, 120_000, 0, 1.0) }
	default:
		return func(t int64) float64 { return wave.Square(t, 60_000, 0.35, 0.45) }
	}
}

func (s *simI2C) Tx(addr uint16, w, r []byte) error {
	ch, ok := s.chans[addr]
	if !ok {
		return errors.New("sim i2c: no device at address")
	}
	if len(w) == 3 && len(r) == 0 {
		return nil // configuration writes accepted and ignored
	}
	if len(w) != 1 || len(r) == 0 {
		return errors.New("sim i2c: unsupported transaction shape")
	}

	t := s.clock.NowMs()
	volts := ch.voltage(t)
	amps := ch.current(t)
	watts := volts * amps

	switch w[0] {
	case simRegDeviceID:
		put16(r, 0x2280)
	case simRegDiagAlrt:
		put16(r, 0x0002) // conversion-ready
	case simRegVBus:
		put24(r, uint32(math.Round(volts/195.3125e-6))<<4)
	case simRegCurrent:
		counts := int32(math.Round(amps / ch.cal.CurrentLSB))
		put24(r, uint32(counts)<<4)
	case simRegPower:
		put24(r, uint32(math.Round(math.Abs(watts)/ch.cal.PowerLSB)))
	case simRegEnergy:
		// Rough running total: average power over the elapsed time.
		joules := math.Abs(watts) * float64(t) / 2000
		put24(r, uint32(math.Round(joules/(16*ch.cal.PowerLSB))))
	case simRegCharge:
		coulombs := amps * float64(t) / 2000
		put24(r, uint32(int32(math.Round(coulombs/ch.cal.CurrentLSB))))
	default:
		put24(r, 0)
	}
	return nil
}

func put16(r []byte, v uint16) {
	if len(r) >= 2 {
		r[0] = byte(v >> 8)
		r[1] = byte(v)
	}
}

func put24(r []byte, v uint32) {
	if len(r) >= 3 {
		r[0] = byte(v >> 16)
		r[1] = byte(v >> 8)
		r[2] = byte(v)
	}
}
