package ina228

import (
	"math"
	"strconv"

	"powermon-go/errcode"
	"powermon-go/x/mathx"
)

// Calibration holds the derived scaling constants for one channel. Created
// once at configuration time and immutable afterwards.
type Calibration struct {
	ShuntOhms   float64
	MaxCurrentA float64
	CurrentLSB  float64 // A/LSB, MaxCurrentA / 2^19
	PowerLSB    float64 // W/LSB, 3.2 × CurrentLSB
	ShuntCal    uint16  // SHUNT_CAL register value
}

// CalibrationError reports unusable shunt/current parameters. Fatal at
// configuration time; never produced during decoding.
type CalibrationError struct {
	ShuntOhms   float64
	MaxCurrentA float64
	Reason      string
}

func (e *CalibrationError) Error() string {
	return "calibration: " + e.Reason +
		" (shunt=" + strconv.FormatFloat(e.ShuntOhms, 'g', -1, 64) +
		" max_current=" + strconv.FormatFloat(e.MaxCurrentA, 'g', -1, 64) + ")"
}

func (e *CalibrationError) Code() errcode.Code { return errcode.CalibrationInvalid }

// ComputeCalibration derives the per-channel scaling constants:
//
//	CURRENT_LSB = max_current / 2^19
//	SHUNT_CAL   = round(13107.2e6 × CURRENT_LSB × R_shunt)
//
// SHUNT_CAL must land in [1, 65535] to be programmable.
func ComputeCalibration(shuntOhms, maxCurrentA float64) (Calibration, error) {
	if !(shuntOhms > 0) {
		return Calibration{}, &CalibrationError{shuntOhms, maxCurrentA, "shunt resistance must be positive"}
	}
	if !(maxCurrentA > 0) {
		return Calibration{}, &CalibrationError{shuntOhms, maxCurrentA, "max current must be positive"}
	}

	lsb := maxCurrentA / (1 << 19)
	shuntCal := math.Round(13107.2e6 * lsb * shuntOhms)
	if !mathx.Between(shuntCal, 1, 65535) {
		return Calibration{}, &CalibrationError{shuntOhms, maxCurrentA, "SHUNT_CAL out of range"}
	}

	return Calibration{
		ShuntOhms:   shuntOhms,
		MaxCurrentA: maxCurrentA,
		CurrentLSB:  lsb,
		PowerLSB:    3.2 * lsb,
		ShuntCal:    uint16(shuntCal),
	}, nil
}

// DecodeSigned24 sign-extends a 24-bit register value from bit 23.
func DecodeSigned24(raw uint32) int32 {
	v := int32(raw & 0xFFFFFF)
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// Codec turns raw register bit patterns into engineering values. Pure and
// deterministic: no I/O, all policy comes from the fixed decode table and
// the immutable calibration bound at construction.
type Codec struct {
	cal Calibration
}

// NewCodec binds a calibration to the decode policy. A zero calibration is
// rejected here so that Decode never has to check.
func NewCodec(cal Calibration) (Codec, error) {
	if !(cal.CurrentLSB > 0) {
		return Codec{}, &CalibrationError{cal.ShuntOhms, cal.MaxCurrentA, "calibration not derived"}
	}
	return Codec{cal: cal}, nil
}

func (c Codec) Calibration() Calibration { return c.cal }

// Decode applies the kind's rule: optional sign extension, then the fixed
// right shift, then the unit scale. An out-of-range kind is a programming
// error; the table is fixed at compile time and callers pass named kinds.
func (c Codec) Decode(kind RegisterKind, raw uint32) float64 {
	if kind >= kindCount {
		panic("ina228: invalid register kind " + strconv.Itoa(int(kind)))
	}
	rule := decodeRules[kind]

	var v int64
	if rule.signed {
		v = int64(DecodeSigned24(raw))
	} else {
		v = int64(raw & 0xFFFFFF)
	}
	v >>= rule.shift // arithmetic shift after any sign extension

	return float64(v) * rule.scale(c.cal)
}
